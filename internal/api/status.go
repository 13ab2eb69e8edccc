package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/viewfinder/internal/version"
)

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Health",
		Description: "Liveness probe",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthData{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Runtime snapshot of the capture session, controls, and recording",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*StatusResponse, error) {
		data := StatusData{Version: version.Get()}
		if s.options.Stats != nil {
			st := s.options.Stats()
			data.Capture = &CaptureStatus{
				DevicePath: st.DevicePath,
				Width:      st.Width,
				Height:     st.Height,
				Buffers:    st.Buffers,
				Frames:     st.Frames,
				Streaming:  st.Streaming,
				DMAExport:  st.DMAExport,
			}
		}
		if s.options.Controller != nil {
			snap := s.options.Controller.Snapshot()
			data.Controls = &snap
		}
		if s.options.Recording != nil {
			if rec, ok := s.options.Recording(); ok {
				data.Recording = &rec
			}
		}
		return &StatusResponse{Body: data}, nil
	})
}
