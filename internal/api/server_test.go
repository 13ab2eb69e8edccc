package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/viewfinder/internal/capture"
	"github.com/smazurov/viewfinder/internal/controls"
	"github.com/smazurov/viewfinder/internal/display"
)

// stubWriter records sub-device control writes.
type stubWriter struct {
	ids    []uint32
	values []int32
}

func (w *stubWriter) SetControl(id uint32, value int32) error {
	w.ids = append(w.ids, id)
	w.values = append(w.values, value)
	return nil
}

func newTestServer(t *testing.T, opts *Options) *httptest.Server {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	srv := NewServer(opts)
	ts := httptest.NewServer(srv.mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body HealthData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("health status = %q, want %q", body.Status, "ok")
	}
}

func TestStatusReportsSessionState(t *testing.T) {
	ctrl := controls.NewController(&stubWriter{}, nil)
	opts := &Options{
		Stats: func() capture.Stats {
			return capture.Stats{
				DevicePath: "/dev/video3",
				Width:      1920,
				Height:     1080,
				Buffers:    4,
				Frames:     120,
				Streaming:  true,
			}
		},
		Controller: ctrl,
		Recording: func() (RecordingStatus, bool) {
			return RecordingStatus{Path: "/tmp/clip.avi", Frames: 90}, true
		},
	}
	ts := newTestServer(t, opts)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get /api/status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body StatusData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Capture == nil {
		t.Fatal("capture block missing")
	}
	if body.Capture.DevicePath != "/dev/video3" {
		t.Errorf("device = %q, want /dev/video3", body.Capture.DevicePath)
	}
	if body.Capture.Frames != 120 {
		t.Errorf("frames = %d, want 120", body.Capture.Frames)
	}
	if !body.Capture.Streaming {
		t.Error("streaming = false, want true")
	}
	if body.Controls == nil {
		t.Fatal("controls block missing")
	}
	if body.Controls.Focus != "auto" {
		t.Errorf("focus = %q, want auto", body.Controls.Focus)
	}
	if !body.Controls.Live {
		t.Error("live = false, want true")
	}
	if body.Recording == nil {
		t.Fatal("recording block missing")
	}
	if body.Recording.Path != "/tmp/clip.avi" || body.Recording.Frames != 90 {
		t.Errorf("recording = %+v, want /tmp/clip.avi with 90 frames", body.Recording)
	}
	if body.Version.GoVersion == "" {
		t.Error("version block missing go version")
	}
}

func TestStatusOmitsAbsentSubsystems(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get /api/status: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"capture", "controls", "recording"} {
		if _, present := body[key]; present {
			t.Errorf("%s block present, want omitted", key)
		}
	}
	if _, present := body["version"]; !present {
		t.Error("version block missing")
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/status", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
}

func TestMetricsRouteMountsHandler(t *testing.T) {
	opts := &Options{
		PrometheusHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "scrape_ok 1\n")
		}),
	}
	ts := newTestServer(t, opts)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "scrape_ok") {
		t.Errorf("metrics body = %q, want scrape_ok", data)
	}
}

func TestMetricsRouteAbsentWithoutHandler(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get /metrics: %v", err)
	}
	defer resp.Body.Close()

	// The catch-all OPTIONS preflight pattern makes unrouted paths
	// answer 405 rather than 404.
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestPreviewSnapshotRoute(t *testing.T) {
	frame := []byte{0xff, 0xd8, 0xff, 0xd9}
	store := display.NewFrameStore()
	store.Set(frame)

	ts := newTestServer(t, &Options{
		PreviewSnapshot: http.HandlerFunc(store.ServeSnapshot),
	})

	resp, err := http.Get(ts.URL + "/api/preview.jpg")
	if err != nil {
		t.Fatalf("get /api/preview.jpg: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", got)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(data, frame) {
		t.Errorf("snapshot = %x, want %x", data, frame)
	}
}
