package display

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
	"time"
)

// pollInterval is how often streaming clients check for a fresh frame. It
// just needs to outpace any realistic preview rate.
const pollInterval = 10 * time.Millisecond

// FrameStore holds the most recent encoded preview frame. The render loop
// writes, HTTP clients read; each Set hands over ownership of the slice.
type FrameStore struct {
	mu    sync.RWMutex
	frame []byte
	seq   uint64
}

func NewFrameStore() *FrameStore {
	return &FrameStore{}
}

// Set publishes a new frame. The store keeps the slice, so callers must
// not reuse it.
func (s *FrameStore) Set(frame []byte) {
	s.mu.Lock()
	s.frame = frame
	s.seq++
	s.mu.Unlock()
}

// Latest returns the current frame and its sequence number. The sequence
// lets pollers skip frames they have already sent.
func (s *FrameStore) Latest() ([]byte, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.seq
}

// ServeMJPEG streams frames as multipart/x-mixed-replace until the client
// disconnects. Each client polls the store independently; a client that
// stalls only misses frames, it never backpressures the render loop.
func (s *FrameStore) ServeMJPEG(w http.ResponseWriter, r *http.Request) {
	mimeWriter := multipart.NewWriter(w)
	defer mimeWriter.Close()
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mimeWriter.Boundary()))
	w.Header().Set("Cache-Control", "no-store")

	flusher, _ := w.(http.Flusher)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Add("Content-Type", "image/jpeg")

	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	var sent uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
		}
		frame, seq := s.Latest()
		if frame == nil || seq == sent {
			continue
		}
		sent = seq
		part, err := mimeWriter.CreatePart(partHeader)
		if err != nil {
			return
		}
		if _, err := part.Write(frame); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// ServeSnapshot returns the latest frame as a single JPEG.
func (s *FrameStore) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	frame, _ := s.Latest()
	if frame == nil {
		http.Error(w, "no frame captured yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}
