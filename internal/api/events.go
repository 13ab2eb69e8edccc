package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/viewfinder/internal/events"
)

// StreamOpenedEvent is the first message on a new SSE connection. It
// also forces the initial flush so clients see headers immediately.
type StreamOpenedEvent struct {
	Timestamp string `json:"timestamp" example:"2025-01-09T10:30:00Z" doc:"Connection time"`
}

func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Event Stream",
		Description: "Capture lifecycle, control, discovery, and recording events over Server-Sent Events",
		Tags:        []string{"events"},
	}, map[string]any{
		"stream-opened":     StreamOpenedEvent{},
		"capture-started":   events.CaptureStartedEvent{},
		"capture-stopped":   events.CaptureStoppedEvent{},
		"focus-changed":     events.FocusChangedEvent{},
		"pattern-changed":   events.PatternChangedEvent{},
		"control-rejected":  events.ControlRejectedEvent{},
		"device-discovery":  events.DeviceDiscoveryEvent{},
		"recording-started": events.RecordingStartedEvent{},
		"recording-stopped": events.RecordingStoppedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.CaptureStartedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.CaptureStoppedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.FocusChangedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.PatternChangedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.ControlRejectedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.DeviceDiscoveryEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.RecordingStartedEvent](s.options.Bus, eventCh),
			events.SubscribeToChannel[events.RecordingStoppedEvent](s.options.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(StreamOpenedEvent{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
