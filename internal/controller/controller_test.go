package controller_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"cloudpose/internal/controller"
	"cloudpose/internal/imagefile"
	"cloudpose/internal/services"
	"cloudpose/internal/services/posesvc"
	"cloudpose/internal/testsupport"
)

func newHarness(t *testing.T) (*controller.Controller, *testsupport.PoseServer) {
	t.Helper()
	server := testsupport.NewPoseServer(t)
	client := posesvc.NewClient(posesvc.Config{BaseURL: server.URL})
	return controller.New(client), server
}

func selectSample(t *testing.T, c *controller.Controller, name string) *imagefile.Image {
	t.Helper()
	img := imagefile.FromBytes(name, testsupport.SamplePNG(t, 4, 4))
	c.SelectImage(context.Background(), img)
	c.Wait()
	return img
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestNewControllerStartsIdle(t *testing.T) {
	c, _ := newHarness(t)
	state := c.Snapshot()
	if state.View != controller.ViewPose {
		t.Fatalf("expected pose view by default, got %q", state.View)
	}
	if c.Phase() != controller.PhaseIdle {
		t.Fatalf("expected idle phase, got %q", c.Phase())
	}
}

func TestSelectImageBuildsPreview(t *testing.T) {
	c, _ := newHarness(t)
	img := selectSample(t, c, "person.png")

	state := c.Snapshot()
	if state.Image != img {
		t.Fatal("expected selected image to be stored")
	}
	decoded, err := imagefile.DecodeDataURL(state.Preview)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	original, _ := img.Read(context.Background())
	if string(decoded) != string(original) {
		t.Fatal("preview does not decode to the selected bytes")
	}
	if !strings.HasPrefix(state.Preview, "data:image/png;base64,") {
		t.Fatalf("unexpected preview prefix %.30s", state.Preview)
	}
	if c.Phase() != controller.PhaseImageSelected {
		t.Fatalf("expected image_selected, got %q", c.Phase())
	}
}

func TestSelectNilImageIsNoop(t *testing.T) {
	c, _ := newHarness(t)
	selectSample(t, c, "a.png")
	before := c.Snapshot()
	c.SelectImage(context.Background(), nil)
	after := c.Snapshot()
	if after.Image != before.Image || after.Selection != before.Selection {
		t.Fatal("nil selection must not change state")
	}
}

func TestRequestWithoutImageFailsFast(t *testing.T) {
	c, server := newHarness(t)

	for _, request := range []func(context.Context) error{c.RequestPoseKeypoints, c.RequestAnnotatedImage} {
		err := request(context.Background())
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		state := c.Snapshot()
		if state.Error != controller.NoImageMessage {
			t.Fatalf("unexpected error text %q", state.Error)
		}
		if state.Loading {
			t.Fatal("loading must stay false")
		}
	}
	if server.RequestCount() != 0 {
		t.Fatalf("expected no network calls, got %d", server.RequestCount())
	}
}

func TestRequestPoseKeypointsStoresResult(t *testing.T) {
	c, _ := newHarness(t)
	selectSample(t, c, "pose.png")
	if err := c.SetViewMode(controller.ViewAnnotated); err != nil {
		t.Fatalf("SetViewMode: %v", err)
	}

	if err := c.RequestPoseKeypoints(context.Background()); err != nil {
		t.Fatalf("RequestPoseKeypoints: %v", err)
	}
	state := c.Snapshot()
	if state.Pose == nil || state.Pose.Count != 2 || state.Pose.ProcessingTime != "0.45s" {
		t.Fatalf("unexpected pose result %+v", state.Pose)
	}
	if state.View != controller.ViewPose {
		t.Fatalf("expected pose view, got %q", state.View)
	}
	if state.Loading || state.Error != "" {
		t.Fatalf("unexpected loading/error: %v %q", state.Loading, state.Error)
	}
	if c.Phase() != controller.PhaseResultReady {
		t.Fatalf("expected result_ready, got %q", c.Phase())
	}
}

func TestRequestAnnotatedImageStoresDataURL(t *testing.T) {
	c, _ := newHarness(t)
	selectSample(t, c, "pose.png")

	if err := c.RequestAnnotatedImage(context.Background()); err != nil {
		t.Fatalf("RequestAnnotatedImage: %v", err)
	}
	state := c.Snapshot()
	if want := "data:image/jpeg;base64," + testsupport.AnnotatedPayload; state.Annotated != want {
		t.Fatalf("Annotated = %q, want %q", state.Annotated, want)
	}
	if state.View != controller.ViewAnnotated {
		t.Fatalf("expected annotated view, got %q", state.View)
	}
}

func TestAnnotatedWithoutImageStillSwitchesView(t *testing.T) {
	c, server := newHarness(t)
	server.Respond(posesvc.PathAnnotated, func(env posesvc.Envelope) (int, any) {
		return http.StatusOK, map[string]any{"id": env.ID, "message": "no people"}
	})
	selectSample(t, c, "empty.png")

	if err := c.RequestAnnotatedImage(context.Background()); err != nil {
		t.Fatalf("RequestAnnotatedImage: %v", err)
	}
	state := c.Snapshot()
	if state.Annotated != "" {
		t.Fatalf("expected no annotated result, got %q", state.Annotated)
	}
	if state.View != controller.ViewAnnotated {
		t.Fatalf("expected annotated view, got %q", state.View)
	}
}

func TestFailureKeepsPreviousResult(t *testing.T) {
	c, server := newHarness(t)
	selectSample(t, c, "pose.png")
	if err := c.RequestPoseKeypoints(context.Background()); err != nil {
		t.Fatalf("first request: %v", err)
	}
	previous := c.Snapshot().Pose

	server.Respond(posesvc.PathKeypoints, testsupport.Failure(http.StatusInternalServerError, "inference failed"))
	err := c.RequestPoseKeypoints(context.Background())
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	state := c.Snapshot()
	if state.Pose != previous {
		t.Fatal("failed request must not replace the previous result")
	}
	if state.Error != "Error: HTTP error! status: 500: inference failed" {
		t.Fatalf("unexpected error text %q", state.Error)
	}
	if state.Loading {
		t.Fatal("loading must be cleared after failure")
	}
	if c.Phase() != controller.PhaseErrorShown {
		t.Fatalf("expected error_shown, got %q", c.Phase())
	}

	server.Respond(posesvc.PathKeypoints, testsupport.DefaultKeypoints)
	if err := c.RequestPoseKeypoints(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c.Snapshot().Error != "" {
		t.Fatal("a new request must clear the previous error")
	}
}

func TestAnnotatedFailureKeepsPreviousImage(t *testing.T) {
	c, server := newHarness(t)
	selectSample(t, c, "annotated.png")
	if err := c.RequestAnnotatedImage(context.Background()); err != nil {
		t.Fatalf("first request: %v", err)
	}
	previous := c.Snapshot().Annotated
	if previous == "" {
		t.Fatal("expected an annotated image after the first request")
	}

	server.Respond(posesvc.PathAnnotated, testsupport.Failure(http.StatusInternalServerError, "renderer crashed"))
	if err := c.RequestAnnotatedImage(context.Background()); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	state := c.Snapshot()
	if state.Annotated != previous {
		t.Fatal("failed request must not replace the previous annotated image")
	}
	if state.Error != "Error: HTTP error! status: 500: renderer crashed" {
		t.Fatalf("unexpected error text %q", state.Error)
	}
	if state.Loading || state.InFlight != 0 {
		t.Fatalf("loading must be cleared after failure, got %+v", state)
	}
}

func TestNewSelectionClearsResultsAndError(t *testing.T) {
	c, server := newHarness(t)
	selectSample(t, c, "first.png")
	if err := c.RequestPoseKeypoints(context.Background()); err != nil {
		t.Fatalf("keypoints: %v", err)
	}
	if err := c.RequestAnnotatedImage(context.Background()); err != nil {
		t.Fatalf("annotated: %v", err)
	}
	server.Respond(posesvc.PathKeypoints, testsupport.Failure(http.StatusBadGateway, "down"))
	_ = c.RequestPoseKeypoints(context.Background())

	before := c.Snapshot()
	if before.Pose == nil || before.Annotated == "" || before.Error == "" {
		t.Fatalf("expected populated state before reselect: %+v", before)
	}

	selectSample(t, c, "second.png")
	after := c.Snapshot()
	if after.Pose != nil || after.Annotated != "" || after.Error != "" {
		t.Fatalf("expected cleared state, got %+v", after)
	}
	if after.Image.Name != "second.png" {
		t.Fatalf("unexpected image %q", after.Image.Name)
	}
}

func TestConsecutiveRequestsUseFreshIDs(t *testing.T) {
	c, server := newHarness(t)
	selectSample(t, c, "same.png")

	if err := c.RequestPoseKeypoints(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := c.RequestPoseKeypoints(context.Background()); err != nil {
		t.Fatalf("second: %v", err)
	}
	requests := server.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	a, b := requests[0].Envelope, requests[1].Envelope
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.Image != b.Image || a.FileName != b.FileName || a.FileName != "same.png" {
		t.Fatalf("expected identical payloads: %+v vs %+v", a, b)
	}
	if strings.HasPrefix(a.Image, "data:") {
		t.Fatal("envelope image must be the bare base64 payload")
	}
}

func TestSetViewModeRejectsUnknown(t *testing.T) {
	c, _ := newHarness(t)
	if err := c.SetViewMode(controller.ViewAnnotated); err != nil {
		t.Fatalf("SetViewMode: %v", err)
	}
	err := c.SetViewMode(controller.ViewMode("3d"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if c.Snapshot().View != controller.ViewAnnotated {
		t.Fatal("rejected view must leave state unchanged")
	}
}

func TestParseViewMode(t *testing.T) {
	tests := []struct {
		in      string
		want    controller.ViewMode
		wantErr bool
	}{
		{"pose", controller.ViewPose, false},
		{" Annotated ", controller.ViewAnnotated, false},
		{"skeleton", "", true},
	}
	for _, tt := range tests {
		got, err := controller.ParseViewMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseViewMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestLoadingWhileRequestOutstanding(t *testing.T) {
	c, server := newHarness(t)
	selectSample(t, c, "slow.png")
	server.Hold()

	done := make(chan error, 1)
	go func() { done <- c.RequestPoseKeypoints(context.Background()) }()

	waitFor(t, "request to reach the server", func() bool { return server.RequestCount() == 1 })
	state := c.Snapshot()
	if !state.Loading || state.Phase() != controller.PhaseRequestInFlight {
		t.Fatalf("expected in-flight state, got loading=%v phase=%q", state.Loading, state.Phase())
	}

	server.Release()
	if err := <-done; err != nil {
		t.Fatalf("request: %v", err)
	}
	if c.Snapshot().Loading {
		t.Fatal("loading must clear after completion")
	}
}

type gatedService struct {
	mu        sync.Mutex
	keypoints chan struct{}
	annotated chan struct{}
	calls     []posesvc.Envelope
}

func newGatedService() *gatedService {
	return &gatedService{keypoints: make(chan struct{}), annotated: make(chan struct{})}
}

func (g *gatedService) record(env posesvc.Envelope) {
	g.mu.Lock()
	g.calls = append(g.calls, env)
	g.mu.Unlock()
}

func (g *gatedService) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *gatedService) Keypoints(ctx context.Context, env posesvc.Envelope) (*posesvc.PoseResult, error) {
	g.record(env)
	<-g.keypoints
	return &posesvc.PoseResult{ID: env.ID, Count: 1, ProcessingTime: "0.10s"}, nil
}

func (g *gatedService) Annotated(ctx context.Context, env posesvc.Envelope) (*posesvc.AnnotatedResult, error) {
	g.record(env)
	<-g.annotated
	return nil, errors.New("annotated backend offline")
}

func TestConcurrentRequestsTrackLoadingUntilBothFinish(t *testing.T) {
	svc := newGatedService()
	c := controller.New(svc)
	selectSample(t, c, "both.png")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = c.RequestPoseKeypoints(context.Background()) }()
	go func() { defer wg.Done(); _ = c.RequestAnnotatedImage(context.Background()) }()
	waitFor(t, "both calls", func() bool { return svc.callCount() == 2 })

	if state := c.Snapshot(); state.InFlight != 2 || !state.Loading {
		t.Fatalf("expected two in flight, got %+v", state)
	}

	close(svc.keypoints)
	waitFor(t, "keypoints completion", func() bool { return c.Snapshot().InFlight == 1 })
	state := c.Snapshot()
	if !state.Loading {
		t.Fatal("loading must stay set while the annotated call is outstanding")
	}
	if state.Pose == nil || state.View != controller.ViewPose {
		t.Fatalf("expected keypoints result applied, got %+v", state)
	}

	close(svc.annotated)
	wg.Wait()
	state = c.Snapshot()
	if state.Loading || state.InFlight != 0 {
		t.Fatalf("expected idle loading, got %+v", state)
	}
	if !strings.Contains(state.Error, "annotated backend offline") {
		t.Fatalf("expected last failure to win, got %q", state.Error)
	}
	if state.Pose == nil || state.View != controller.ViewPose {
		t.Fatal("annotated failure must not touch the keypoints result or view")
	}
}

func TestResultForReplacedImageIsDropped(t *testing.T) {
	svc := newGatedService()
	c := controller.New(svc)
	selectSample(t, c, "old.png")

	done := make(chan error, 1)
	go func() { done <- c.RequestPoseKeypoints(context.Background()) }()
	waitFor(t, "keypoints call", func() bool { return svc.callCount() == 1 })

	selectSample(t, c, "new.png")
	close(svc.keypoints)
	if err := <-done; err != nil {
		t.Fatalf("request: %v", err)
	}
	state := c.Snapshot()
	if state.Pose != nil {
		t.Fatal("result for the replaced image must be discarded")
	}
	if state.Loading {
		t.Fatal("loading must still clear")
	}
}

func TestFailureForReplacedImageIsReturnedButNotShown(t *testing.T) {
	svc := newGatedService()
	c := controller.New(svc)
	selectSample(t, c, "old.png")

	done := make(chan error, 1)
	go func() { done <- c.RequestAnnotatedImage(context.Background()) }()
	waitFor(t, "annotated call", func() bool { return svc.callCount() == 1 })

	selectSample(t, c, "new.png")
	close(svc.annotated)
	err := <-done
	if err == nil || !strings.Contains(err.Error(), "annotated backend offline") {
		t.Fatalf("expected the failure to reach the caller, got %v", err)
	}
	state := c.Snapshot()
	if state.Error != "" {
		t.Fatalf("failure for the replaced image must not be shown, got %q", state.Error)
	}
	if state.Loading || state.InFlight != 0 {
		t.Fatalf("expected idle loading, got %+v", state)
	}
}

func TestStalePreviewIsDiscarded(t *testing.T) {
	c, _ := newHarness(t)
	release := make(chan struct{})
	slow := imagefile.FromOpener("slow.png", "image/png", 4, func() (io.ReadCloser, error) {
		<-release
		return io.NopCloser(strings.NewReader("slow")), nil
	})

	c.SelectImage(context.Background(), slow)
	fast := imagefile.FromBytes("fast.png", testsupport.SamplePNG(t, 2, 2))
	c.SelectImage(context.Background(), fast)
	close(release)
	c.Wait()

	want, err := imagefile.Preview(context.Background(), fast)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if got := c.Snapshot().Preview; got != want {
		t.Fatalf("expected preview of newest image, got %.40s", got)
	}
}

func TestWaitRacesWithSelection(t *testing.T) {
	c, _ := newHarness(t)
	data := testsupport.SamplePNG(t, 2, 2)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.SelectImage(context.Background(), imagefile.FromBytes("race.png", data))
		}()
		go func() {
			defer wg.Done()
			c.Wait()
		}()
		go func() {
			defer wg.Done()
			_ = c.RequestPoseKeypoints(context.Background())
			_ = c.RequestAnnotatedImage(context.Background())
		}()
	}
	wg.Wait()
	c.Wait()

	state := c.Snapshot()
	if state.Loading || state.InFlight != 0 {
		t.Fatalf("expected no outstanding work, got %+v", state)
	}
	if state.Preview == "" {
		t.Fatal("expected the final selection to have a preview")
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("sector unreadable") }

func TestEncodingFailureIsSurfaced(t *testing.T) {
	c, server := newHarness(t)
	broken := imagefile.FromOpener("broken.png", "image/png", 10, func() (io.ReadCloser, error) {
		return io.NopCloser(brokenReader{}), nil
	})
	c.SelectImage(context.Background(), broken)
	c.Wait()
	if !strings.Contains(c.Snapshot().Error, "sector unreadable") {
		t.Fatalf("expected preview failure surfaced, got %q", c.Snapshot().Error)
	}

	err := c.RequestPoseKeypoints(context.Background())
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected encoding error, got %v", err)
	}
	state := c.Snapshot()
	if !strings.HasPrefix(state.Error, "Error: ") || state.Loading {
		t.Fatalf("unexpected state %+v", state)
	}
	if server.RequestCount() != 0 {
		t.Fatal("encoding failure must not reach the network")
	}
}

func TestSubscribersObserveTransitions(t *testing.T) {
	c, _ := newHarness(t)

	var (
		mu     sync.Mutex
		phases []controller.Phase
	)
	unsubscribe := c.Subscribe(func(s controller.State) {
		mu.Lock()
		phases = append(phases, s.Phase())
		mu.Unlock()
	})

	selectSample(t, c, "watched.png")
	if err := c.RequestPoseKeypoints(context.Background()); err != nil {
		t.Fatalf("request: %v", err)
	}

	mu.Lock()
	seen := append([]controller.Phase(nil), phases...)
	mu.Unlock()
	want := []controller.Phase{
		controller.PhaseImageSelected,
		controller.PhaseImageSelected,
		controller.PhaseRequestInFlight,
		controller.PhaseResultReady,
	}
	if len(seen) != len(want) {
		t.Fatalf("phases = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("phases = %v, want %v", seen, want)
		}
	}

	unsubscribe()
	if err := c.SetViewMode(controller.ViewAnnotated); err != nil {
		t.Fatalf("SetViewMode: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(phases) != len(want) {
		t.Fatal("unsubscribed callback must not fire")
	}
}

func TestSubscriberHandsOffBeforeCallingBack(t *testing.T) {
	c, _ := newHarness(t)
	selectSample(t, c, "handoff.png")

	results := make(chan controller.State, 16)
	unsubscribe := c.Subscribe(func(s controller.State) {
		select {
		case results <- s:
		default:
		}
	})
	defer unsubscribe()

	if err := c.RequestPoseKeypoints(context.Background()); err != nil {
		t.Fatalf("request: %v", err)
	}

	// Reacting to a notification from another goroutine is the supported way
	// to call back into the controller.
	done := make(chan error, 1)
	go func() {
		for s := range results {
			if s.Phase() == controller.PhaseResultReady {
				done <- c.SetViewMode(controller.ViewAnnotated)
				return
			}
		}
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SetViewMode: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("view switch from a handed-off notification did not complete")
	}
	if got := c.Snapshot().View; got != controller.ViewAnnotated {
		t.Fatalf("expected annotated view, got %q", got)
	}
}
