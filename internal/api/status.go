package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/statuslight/internal/anim"
	"github.com/smazurov/statuslight/internal/api/models"
	"github.com/smazurov/statuslight/internal/status"
	"github.com/smazurov/statuslight/internal/syncbus"
)

// toStatusData converts an arbitrator snapshot to its API representation.
func toStatusData(st status.State) models.StatusData {
	return models.StatusData{
		Status:           st.Status.String(),
		Animation:        st.Animation.String(),
		Priority:         st.Priority.String(),
		Brightness:       st.Brightness,
		GlobalBrightness: st.GlobalBrightness,
		DurationMs:       st.Duration.Milliseconds(),
		Frame:            st.Frame,
		Animating:        st.Animating,
		Expired:          st.Expired,
		AutoBrightness:   st.AutoBrightness,
		Color:            st.Color.Hex(),
	}
}

// controlError maps arbitrator and sync bus errors to HTTP errors.
func controlError(msg string, err error) error {
	switch {
	case errors.Is(err, status.ErrInvalidArgument), errors.Is(err, syncbus.ErrInvalidEvent):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, syncbus.ErrQueueFull):
		return huma.Error429TooManyRequests(msg, err)
	case errors.Is(err, status.ErrClosed), errors.Is(err, syncbus.ErrClosed):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Get Status",
		Description: "Get the displayed status, its animation state and the last color pushed to the LED",
		Tags:        []string{"status"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: toStatusData(s.options.Status.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-status",
		Method:      http.MethodPut,
		Path:        "/api/status",
		Summary:     "Set Status",
		Description: "Request a status. Requests below the priority of the displayed status are rejected with accepted=false.",
		Tags:        []string{"status"},
		Errors:      []int{401, 422, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetStatusRequest) (*models.SetStatusResponse, error) {
		kind, err := status.ParseKind(input.Body.Status)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid status", err)
		}
		animation, err := anim.Parse(input.Body.Animation)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid animation", err)
		}
		priority, err := status.ParsePriority(input.Body.Priority)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid priority", err)
		}

		duration := time.Duration(input.Body.DurationMs) * time.Millisecond
		accepted, err := s.options.Status.TrySet(kind, animation, priority, duration)
		if err != nil {
			return nil, controlError("Failed to set status", err)
		}

		resp := &models.SetStatusResponse{}
		resp.Body.Accepted = accepted
		resp.Body.Current = toStatusData(s.options.Status.Snapshot())
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-status",
		Method:      http.MethodDelete,
		Path:        "/api/status",
		Summary:     "Clear Status",
		Description: "Return to normal. Subject to the same priority rule as any other normal-priority request.",
		Tags:        []string{"status"},
		Errors:      []int{401, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		if err := s.options.Status.Clear(); err != nil {
			return nil, controlError("Failed to clear status", err)
		}
		return &models.StatusResponse{Body: toStatusData(s.options.Status.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-brightness",
		Method:      http.MethodPut,
		Path:        "/api/status/brightness",
		Summary:     "Set Brightness",
		Description: "Set the global brightness applied on top of every status",
		Tags:        []string{"status"},
		Errors:      []int{401, 422, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.BrightnessRequest) (*models.StatusResponse, error) {
		if err := s.options.Status.SetBrightness(uint8(input.Body.Brightness)); err != nil {
			return nil, controlError("Failed to set brightness", err)
		}
		return &models.StatusResponse{Body: toStatusData(s.options.Status.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-auto-brightness",
		Method:      http.MethodPut,
		Path:        "/api/status/auto-brightness",
		Summary:     "Set Auto-Brightness",
		Description: "Toggle the auto-brightness flag",
		Tags:        []string{"status"},
		Errors:      []int{401, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.EnabledRequest) (*models.StatusResponse, error) {
		if err := s.options.Status.SetAutoBrightness(input.Body.Enabled); err != nil {
			return nil, controlError("Failed to set auto-brightness", err)
		}
		return &models.StatusResponse{Body: toStatusData(s.options.Status.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-status",
		Method:      http.MethodPost,
		Path:        "/api/status/refresh",
		Summary:     "Refresh LED",
		Description: "Recompute the current frame and push it to the LED",
		Tags:        []string{"status"},
		Errors:      []int{401, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		if err := s.options.Status.Refresh(ctx); err != nil {
			return nil, controlError("Failed to refresh LED", err)
		}
		return &models.StatusResponse{Body: toStatusData(s.options.Status.Snapshot())}, nil
	})
}
