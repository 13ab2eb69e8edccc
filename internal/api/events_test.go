package api

import (
	"bufio"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/viewfinder/internal/events"
)

// sseData pumps the data lines of an SSE response into a channel. The
// goroutine exits when the response body is closed.
func sseData(resp *http.Response) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				out <- line
			}
		}
	}()
	return out
}

func waitData(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %q arrived", want)
			}
			if strings.Contains(line, want) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func openStream(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("connect %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}
	return resp
}

func TestEventStream(t *testing.T) {
	bus := events.New()
	ts := newTestServer(t, &Options{Bus: bus})

	resp := openStream(t, ts.URL+"/api/events")
	lines := sseData(resp)

	// The opening message confirms the bus subscriptions are in place;
	// anything published after it must reach the client.
	waitData(t, lines, "timestamp")

	bus.Publish(events.FocusChangedEvent{
		From:      "auto",
		To:        "single-shot",
		Timestamp: "2025-01-09T10:30:00Z",
	})
	waitData(t, lines, `"single-shot"`)

	bus.Publish(events.PatternChangedEvent{
		Pattern:   2,
		Timestamp: "2025-01-09T10:30:01Z",
	})
	waitData(t, lines, `"pattern":2`)

	bus.Publish(events.CaptureStoppedEvent{
		DevicePath: "/dev/video3",
		Frames:     300,
		Reason:     "limit",
		Timestamp:  "2025-01-09T10:30:02Z",
	})
	waitData(t, lines, `"reason":"limit"`)
}

func TestEventStreamAbsentWithoutBus(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("get /api/events: %v", err)
	}
	defer resp.Body.Close()

	// The catch-all OPTIONS preflight pattern makes unrouted paths
	// answer 405 rather than 404.
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestLogStreamDeliversEntries(t *testing.T) {
	bus := events.New()
	ts := newTestServer(t, &Options{Bus: bus})

	resp := openStream(t, ts.URL+"/api/logs/stream")
	lines := sseData(resp)

	entry := events.LogEntryEvent{
		Seq:       7,
		Timestamp: "2025-01-09T10:30:00.123Z",
		Level:     "warn",
		Module:    "capture",
		Message:   "buffer pool exhausted",
	}

	// There is no hello message on the log stream, so publish until the
	// subscription catches one instead of racing the handler startup.
	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before the entry arrived")
			}
			if strings.Contains(line, "buffer pool exhausted") {
				if !strings.Contains(line, `"seq":7`) {
					t.Errorf("entry %q missing sequence number", line)
				}
				return
			}
		case <-tick.C:
			bus.Publish(entry)
		case <-deadline:
			t.Fatal("timed out waiting for the log entry")
		}
	}
}
