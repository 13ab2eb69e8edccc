package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/viewfinder/internal/controls"
)

func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "set-focus",
		Method:        http.MethodPost,
		Path:          "/api/controls/focus",
		Summary:       "Focus",
		Description:   "Queue a focus mode change. The sub-device write happens on the capture goroutine before the next frame.",
		Tags:          []string{"controls"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{422, 503},
	}, func(_ context.Context, input *FocusInput) (*ControlResponse, error) {
		ctrl := s.options.Controller
		if ctrl == nil {
			return nil, huma.Error503ServiceUnavailable("no sub-device attached")
		}
		mode, ok := controls.ParseFocusMode(input.Body.Mode)
		if !ok {
			return nil, huma.Error422UnprocessableEntity("unknown focus mode " + input.Body.Mode)
		}
		if !ctrl.EnqueueFocus(mode) {
			return nil, huma.Error503ServiceUnavailable("control queue full")
		}
		return &ControlResponse{
			Body: ControlData{Status: "queued", Request: "focus " + input.Body.Mode},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "set-test-pattern",
		Method:        http.MethodPost,
		Path:          "/api/controls/test-pattern",
		Summary:       "Test Pattern",
		Description:   "Queue a test pattern change, either cycling, returning to live output, or selecting an explicit pattern.",
		Tags:          []string{"controls"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{422, 503},
	}, func(_ context.Context, input *PatternInput) (*ControlResponse, error) {
		ctrl := s.options.Controller
		if ctrl == nil {
			return nil, huma.Error503ServiceUnavailable("no sub-device attached")
		}

		var queued bool
		var request string
		switch {
		case input.Body.Value != nil && input.Body.Action != "":
			return nil, huma.Error422UnprocessableEntity("action and value are mutually exclusive")
		case input.Body.Value != nil:
			request = fmt.Sprintf("pattern %d", *input.Body.Value)
			queued = ctrl.EnqueuePattern(*input.Body.Value)
		case input.Body.Action == "cycle":
			request = "pattern cycle"
			queued = ctrl.Enqueue(controls.ReqPatternCycle)
		case input.Body.Action == "live":
			request = "pattern live"
			queued = ctrl.Enqueue(controls.ReqPatternLive)
		default:
			return nil, huma.Error422UnprocessableEntity("either action or value is required")
		}
		if !queued {
			return nil, huma.Error503ServiceUnavailable("control queue full")
		}
		return &ControlResponse{
			Body: ControlData{Status: "queued", Request: request},
		}, nil
	})
}
