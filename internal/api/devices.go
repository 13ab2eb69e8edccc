package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/viewfinder/internal/devices"
)

// Indirected for tests; the defaults scan /dev.
var (
	listDevices    = devices.List
	listSubdevices = devices.ListSubdevices
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 capture devices with their pixel formats",
		Tags:        []string{"devices"},
		Errors:      []int{500},
	}, func(_ context.Context, _ *struct{}) (*DeviceListResponse, error) {
		list, err := listDevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}
		return &DeviceListResponse{
			Body: DeviceListData{Devices: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-subdevices",
		Method:      http.MethodGet,
		Path:        "/api/subdevices",
		Summary:     "List Sub-devices",
		Description: "List V4L2 sub-device nodes carrying sensor controls",
		Tags:        []string{"devices"},
		Errors:      []int{500},
	}, func(_ context.Context, _ *struct{}) (*SubdeviceListResponse, error) {
		list, err := listSubdevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to enumerate sub-devices", err)
		}
		return &SubdeviceListResponse{
			Body: SubdeviceListData{Subdevices: list, Count: len(list)},
		}, nil
	})
}
