package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"cloudpose/internal/services/posesvc"
)

// AnnotatedPayload is the base64 image returned by the default annotated handler.
const AnnotatedPayload = "/9j/4AAQSkZJRgABAQAAAQABAAD/2wBDAP8="

// PoseResponder produces a status code and JSON body for a decoded envelope.
type PoseResponder func(env posesvc.Envelope) (int, any)

// RecordedRequest is one envelope received by a PoseServer.
type RecordedRequest struct {
	Path        string
	ContentType string
	Envelope    posesvc.Envelope
}

// PoseServer is an in-process stand-in for the pose service.
type PoseServer struct {
	*httptest.Server

	mu         sync.Mutex
	requests   []RecordedRequest
	responders map[string]PoseResponder
	gate       chan struct{}
}

// NewPoseServer starts a fake pose service that answers both endpoints with
// canned successful responses until overridden with Respond.
func NewPoseServer(t testing.TB) *PoseServer {
	t.Helper()

	ps := &PoseServer{
		responders: map[string]PoseResponder{
			posesvc.PathKeypoints: DefaultKeypoints,
			posesvc.PathAnnotated: DefaultAnnotated,
		},
	}
	ps.Server = httptest.NewServer(http.HandlerFunc(ps.handle))
	t.Cleanup(func() {
		ps.Release()
		ps.Server.Close()
	})
	return ps
}

// Respond replaces the responder for path.
func (ps *PoseServer) Respond(path string, responder PoseResponder) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.responders[path] = responder
}

// Hold makes every handler wait until Release is called. Requests are recorded
// before they block.
func (ps *PoseServer) Hold() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.gate == nil {
		ps.gate = make(chan struct{})
	}
}

// Release unblocks held handlers.
func (ps *PoseServer) Release() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.gate != nil {
		close(ps.gate)
		ps.gate = nil
	}
}

// Requests returns a copy of every recorded request.
func (ps *PoseServer) Requests() []RecordedRequest {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]RecordedRequest, len(ps.requests))
	copy(out, ps.requests)
	return out
}

// RequestCount returns how many requests have arrived.
func (ps *PoseServer) RequestCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.requests)
}

func (ps *PoseServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var env posesvc.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ps.mu.Lock()
	ps.requests = append(ps.requests, RecordedRequest{
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Envelope:    env,
	})
	responder, ok := ps.responders[r.URL.Path]
	gate := ps.gate
	ps.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	status, body := responder(env)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// DefaultKeypoints mirrors a two-person detection.
func DefaultKeypoints(env posesvc.Envelope) (int, any) {
	return http.StatusOK, map[string]any{
		"id":    env.ID,
		"count": 2,
		"boxes": []map[string]any{
			{"x": 10, "y": 20, "width": 30, "height": 60, "probability": 0.91},
			{"x": 50, "y": 22, "width": 28, "height": 58, "probability": 0.84},
		},
		"keypoints": [][][]float64{
			{{12, 25, 0.9}, {14, 30, 0.8}},
			{{52, 26, 0.7}, {55, 31, 0.6}},
		},
		"processing_time": "0.45s",
		"file_name":       env.FileName,
	}
}

// DefaultAnnotated returns AnnotatedPayload as the rendered image.
func DefaultAnnotated(env posesvc.Envelope) (int, any) {
	return http.StatusOK, map[string]any{
		"id":        env.ID,
		"image":     AnnotatedPayload,
		"file_name": env.FileName,
		"message":   "Pose annotations drawn",
	}
}

// Failure responds with status and the service's error body.
func Failure(status int, message string) PoseResponder {
	return func(env posesvc.Envelope) (int, any) {
		return status, map[string]any{"id": env.ID, "error": message}
	}
}
