package posesvc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloudpose/internal/services"
	"cloudpose/internal/services/posesvc"
	"cloudpose/internal/testsupport"
)

func TestKeypointsPostsEnvelope(t *testing.T) {
	server := testsupport.NewPoseServer(t)
	client := posesvc.NewClient(posesvc.Config{BaseURL: server.URL + "/"})

	env := posesvc.NewEnvelope("QUJD", "person.jpg")
	result, err := client.Keypoints(context.Background(), env)
	if err != nil {
		t.Fatalf("Keypoints: %v", err)
	}

	requests := server.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	got := requests[0]
	if got.Path != posesvc.PathKeypoints {
		t.Fatalf("unexpected path %q", got.Path)
	}
	if got.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", got.ContentType)
	}
	if got.Envelope != env {
		t.Fatalf("envelope mismatch: got %+v want %+v", got.Envelope, env)
	}

	if result.Count != 2 || result.ProcessingTime != "0.45s" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Boxes) != 2 || result.Boxes[0].Probability != 0.91 {
		t.Fatalf("unexpected boxes %+v", result.Boxes)
	}
	if len(result.Keypoints) != 2 || result.Keypoints[1][0].Confidence() != 0.7 {
		t.Fatalf("unexpected keypoints %+v", result.Keypoints)
	}
	if d, ok := result.ProcessingDuration(); !ok || d.Milliseconds() != 450 {
		t.Fatalf("unexpected processing duration %v %v", d, ok)
	}
	if _, ok := result.Fields["file_name"]; !ok {
		t.Fatalf("expected raw fields to be preserved, got %v", result.Fields)
	}
	if !strings.Contains(result.Pretty(), "\"processing_time\": \"0.45s\"") {
		t.Fatalf("unexpected pretty output %s", result.Pretty())
	}
}

func TestKeypointsPreservesUnknownFields(t *testing.T) {
	server := testsupport.NewPoseServer(t)
	server.Respond(posesvc.PathKeypoints, func(env posesvc.Envelope) (int, any) {
		return http.StatusOK, map[string]any{"count": 2, "processing_time": "0.45s", "model": "yolo11l-pose"}
	})
	client := posesvc.NewClient(posesvc.Config{BaseURL: server.URL})

	result, err := client.Keypoints(context.Background(), posesvc.NewEnvelope("QUJD", "a.jpg"))
	if err != nil {
		t.Fatalf("Keypoints: %v", err)
	}
	if result.Fields["model"] != "yolo11l-pose" {
		t.Fatalf("expected extra field, got %v", result.Fields)
	}
	if result.Count != 2 || result.ProcessingTime != "0.45s" {
		t.Fatalf("unexpected typed fields %+v", result)
	}
}

func TestAnnotatedReturnsDataURL(t *testing.T) {
	server := testsupport.NewPoseServer(t)
	client := posesvc.NewClient(posesvc.Config{BaseURL: server.URL})

	result, err := client.Annotated(context.Background(), posesvc.NewEnvelope("QUJD", "b.jpg"))
	if err != nil {
		t.Fatalf("Annotated: %v", err)
	}
	if !result.HasImage() {
		t.Fatal("expected image")
	}
	if want := "data:image/jpeg;base64," + testsupport.AnnotatedPayload; result.DataURL() != want {
		t.Fatalf("DataURL = %q, want %q", result.DataURL(), want)
	}
	if _, err := result.ImageBytes(); err != nil {
		t.Fatalf("ImageBytes: %v", err)
	}
	if server.Requests()[0].Path != posesvc.PathAnnotated {
		t.Fatalf("unexpected path %q", server.Requests()[0].Path)
	}
}

func TestAnnotatedWithoutImage(t *testing.T) {
	server := testsupport.NewPoseServer(t)
	server.Respond(posesvc.PathAnnotated, func(env posesvc.Envelope) (int, any) {
		return http.StatusOK, map[string]any{"id": env.ID, "message": "nothing drawn"}
	})
	client := posesvc.NewClient(posesvc.Config{BaseURL: server.URL})

	result, err := client.Annotated(context.Background(), posesvc.NewEnvelope("QUJD", "c.jpg"))
	if err != nil {
		t.Fatalf("Annotated: %v", err)
	}
	if result.HasImage() || result.DataURL() != "" {
		t.Fatalf("expected no image, got %+v", result)
	}
	if _, err := result.ImageBytes(); err == nil {
		t.Fatal("expected ImageBytes to fail without image")
	}
}

func TestNonSuccessStatusIsTransportError(t *testing.T) {
	server := testsupport.NewPoseServer(t)
	server.Respond(posesvc.PathKeypoints, testsupport.Failure(http.StatusInternalServerError, "model exploded"))
	client := posesvc.NewClient(posesvc.Config{BaseURL: server.URL})

	_, err := client.Keypoints(context.Background(), posesvc.NewEnvelope("QUJD", "d.jpg"))
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var statusErr *posesvc.HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError || statusErr.Detail != "model exploded" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
	if !strings.Contains(err.Error(), "HTTP error! status: 500") {
		t.Fatalf("expected status text in %q", err.Error())
	}
}

func TestMalformedJSONIsTransportError(t *testing.T) {
	server := testsupport.NewPoseServer(t)
	server.Respond(posesvc.PathKeypoints, func(posesvc.Envelope) (int, any) {
		return http.StatusOK, "not an object"
	})
	client := posesvc.NewClient(posesvc.Config{BaseURL: server.URL})

	if _, err := client.Keypoints(context.Background(), posesvc.NewEnvelope("QUJD", "e.jpg")); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestUnreachableServiceIsTransportError(t *testing.T) {
	server := testsupport.NewPoseServer(t)
	url := server.URL
	server.Close()

	client := posesvc.NewClient(posesvc.Config{BaseURL: url, TimeoutSeconds: 1})
	if _, err := client.Annotated(context.Background(), posesvc.NewEnvelope("QUJD", "f.jpg")); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSendReturnsRawStatus(t *testing.T) {
	server := testsupport.NewPoseServer(t)
	server.Respond(posesvc.PathAnnotated, testsupport.Failure(http.StatusServiceUnavailable, "busy"))
	client := posesvc.NewClient(posesvc.Config{BaseURL: server.URL})

	resp, err := client.Send(context.Background(), posesvc.OpAnnotated, posesvc.NewEnvelope("QUJD", "g.jpg"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.OK() || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestNewEnvelopeGeneratesFreshIDs(t *testing.T) {
	a := posesvc.NewEnvelope("data:image/png;base64,QUJD", "x.png")
	b := posesvc.NewEnvelope("QUJD", "x.png")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.Image != "QUJD" || b.Image != "QUJD" {
		t.Fatalf("expected bare payloads, got %q and %q", a.Image, b.Image)
	}
}

func TestHTTPStatusErrorMessage(t *testing.T) {
	err := &posesvc.HTTPStatusError{StatusCode: 404}
	if err.Error() != "HTTP error! status: 404" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestHealthCheckAcceptsAnyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := posesvc.NewClient(posesvc.Config{BaseURL: srv.URL})
	status, err := client.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
}

func TestHealthCheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := posesvc.NewClient(posesvc.Config{BaseURL: url, TimeoutSeconds: 1}).HealthCheck(context.Background())
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
