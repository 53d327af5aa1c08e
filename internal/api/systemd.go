package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/statuslight/internal/api/models"
)

func (s *Server) registerSystemdRoutes() {
	if s.options.Systemd == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/system/service",
		Summary:     "Service Status",
		Description: "Get the daemon's systemd unit state",
		Tags:        []string{"system"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.ServiceStatusResponse, error) {
		st, err := s.options.Systemd.Status(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get service status", err)
		}
		return &models.ServiceStatusResponse{Body: st}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/system/restart",
		Summary:     "Restart Service",
		Description: "Ask systemd to restart the daemon. The response is sent before the restart takes effect.",
		Tags:        []string{"system"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.ServiceActionResponse, error) {
		if err := s.options.Systemd.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError("Failed to restart service", err)
		}
		resp := &models.ServiceActionResponse{}
		resp.Body.Unit = s.options.Systemd.Unit()
		resp.Body.Action = "restart"
		resp.Body.Success = true
		return resp, nil
	})
}
