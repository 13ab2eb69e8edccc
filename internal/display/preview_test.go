package display

import (
	"bytes"
	"context"
	"image/jpeg"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/viewfinder/internal/capture"
	"github.com/smazurov/viewfinder/internal/controls"
	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

type recordingWriter struct {
	ids    []uint32
	values []int32
}

func (w *recordingWriter) SetControl(id uint32, value int32) error {
	w.ids = append(w.ids, id)
	w.values = append(w.values, value)
	return nil
}

func testView(w, h int) capture.FrameView {
	luma := make([]byte, w*h)
	for i := range luma {
		luma[i] = byte(i)
	}
	chroma := make([]byte, w*h/2)
	for i := range chroma {
		chroma[i] = byte(128 + i%64)
	}
	return capture.FrameView{
		Width:    uint32(w),
		Height:   uint32(h),
		Sequence: 1,
		Planes:   [][]byte{luma, chroma},
		Strides:  []uint32{uint32(w), uint32(w)},
	}
}

func TestPreviewRenderProducesJPEG(t *testing.T) {
	p := NewPreview(Config{FPS: 500}, nil, nil, nil)
	view := testView(32, 16)

	if err := p.Prime(view); err != nil {
		t.Fatalf("Prime() = %v, want nil", err)
	}
	done, err := p.Render(view)
	if err != nil || done {
		t.Fatalf("Render() = %v, %v, want false, nil", done, err)
	}

	frame, seq := p.Store().Latest()
	if frame == nil || seq != 1 {
		t.Fatalf("Latest() = %d bytes, seq %d, want a frame with seq 1", len(frame), seq)
	}
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("decoding stored frame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("decoded bounds = %dx%d, want 32x16", b.Dx(), b.Dy())
	}

	if _, err := p.Render(view); err != nil {
		t.Fatalf("second Render() = %v, want nil", err)
	}
	if _, seq := p.Store().Latest(); seq != 2 {
		t.Errorf("seq after second render = %d, want 2", seq)
	}
}

func TestPreviewPrimeValidation(t *testing.T) {
	tests := []struct {
		name string
		view capture.FrameView
	}{
		{"zero size", capture.FrameView{Planes: make([][]byte, 2)}},
		{"odd width", testViewWith(5, 4)},
		{"odd height", testViewWith(4, 5)},
		{"single plane", capture.FrameView{Width: 4, Height: 4, Planes: make([][]byte, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreview(Config{}, nil, nil, nil)
			if err := p.Prime(tt.view); err == nil {
				t.Error("Prime() = nil, want error")
			}
		})
	}
}

// testViewWith builds a geometry-only view for validation tests.
func testViewWith(w, h int) capture.FrameView {
	return capture.FrameView{Width: uint32(w), Height: uint32(h), Planes: make([][]byte, 2)}
}

func TestPreviewRenderRejectsBadHandoff(t *testing.T) {
	p := NewPreview(Config{FPS: 500}, nil, nil, nil)
	view := testView(8, 8)
	if err := p.Prime(view); err != nil {
		t.Fatalf("Prime() = %v, want nil", err)
	}

	bad := view
	bad.Planes = [][]byte{view.Planes[0], nil}
	if _, err := p.Render(bad); err == nil {
		t.Error("Render() with empty chroma plane = nil, want error")
	}

	bad.Planes = [][]byte{view.Planes[0]}
	if _, err := p.Render(bad); err == nil {
		t.Error("Render() with one plane = nil, want error")
	}
}

func TestPreviewPollInputDispatchesKeys(t *testing.T) {
	fw := &recordingWriter{}
	ctrl := controls.NewController(fw, nil)
	kb := &Keyboard{events: make(chan byte, 8), done: make(chan struct{})}
	p := NewPreview(Config{FPS: 1000}, ctrl, kb, nil)

	kb.events <- 't'
	kb.events <- 'q'
	if err := p.PollInput(); err != nil {
		t.Fatalf("PollInput() = %v, want nil", err)
	}

	// 't' cycled the pattern on this goroutine via Drain.
	if len(fw.ids) != 1 || fw.ids[0] != v4l2.CIDTestPattern || fw.values[0] != 1 {
		t.Errorf("writes = %v %v, want one test_pattern=1", fw.ids, fw.values)
	}
	// 'q' makes the next render report done without touching the frame.
	done, err := p.Render(capture.FrameView{})
	if !done || err != nil {
		t.Errorf("Render() after quit = %v, %v, want true, nil", done, err)
	}
}

func TestSnapshotHandler(t *testing.T) {
	store := NewFrameStore()

	rr := httptest.NewRecorder()
	store.ServeSnapshot(rr, httptest.NewRequest("GET", "/api/preview.jpg", nil))
	if rr.Code != 503 {
		t.Fatalf("status before any frame = %d, want 503", rr.Code)
	}

	frame := []byte{0xff, 0xd8, 0xff, 0xd9}
	store.Set(frame)
	rr = httptest.NewRecorder()
	store.ServeSnapshot(rr, httptest.NewRequest("GET", "/api/preview.jpg", nil))
	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	if !bytes.Equal(rr.Body.Bytes(), frame) {
		t.Errorf("body = %v, want %v", rr.Body.Bytes(), frame)
	}
}

func TestMJPEGHandlerStreamsFrames(t *testing.T) {
	store := NewFrameStore()
	store.Set([]byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest("GET", "/api/preview.mjpeg", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	store.ServeMJPEG(rr, req)

	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q, want multipart/x-mixed-replace", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Content-Type: image/jpeg") {
		t.Error("body has no image/jpeg part")
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte{0xff, 0xd8}) {
		t.Error("body has no JPEG marker")
	}
}
