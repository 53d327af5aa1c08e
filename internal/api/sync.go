package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/statuslight/internal/api/models"
	"github.com/smazurov/statuslight/internal/syncbus"
)

func (s *Server) syncSettings() models.SyncSettingsData {
	brightness, duration := s.options.Sync.Feedback()
	return models.SyncSettingsData{
		AutoSync:           s.options.Sync.IsAutoSyncEnabled(),
		FeedbackBrightness: brightness,
		FeedbackDurationMs: duration.Milliseconds(),
		QueueLength:        s.options.Sync.QueueLen(),
		QueueCapacity:      s.options.Sync.QueueCap(),
	}
}

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "send-sync-event",
		Method:      http.MethodPost,
		Path:        "/api/sync/events",
		Summary:     "Send Sync Event",
		Description: "Queue a sync event. Fails with 429 when the queue stays full past the send timeout.",
		Tags:        []string{"sync"},
		Errors:      []int{401, 422, 429, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SendEventRequest) (*models.SendEventResponse, error) {
		t, err := syncbus.ParseEventType(input.Body.Type)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Invalid event type", err)
		}
		if err := s.options.Sync.SendEvent(t, input.Body.Payload); err != nil {
			return nil, controlError("Failed to send event", err)
		}

		resp := &models.SendEventResponse{}
		resp.Body.Queued = true
		resp.Body.QueueLength = s.options.Sync.QueueLen()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "send-battery-status",
		Method:      http.MethodPost,
		Path:        "/api/sync/battery",
		Summary:     "Report Battery",
		Description: "Report battery level and charging state. Charging takes precedence; levels below 20% raise a low-battery event.",
		Tags:        []string{"sync"},
		Errors:      []int{401, 422, 429, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.BatteryRequest) (*models.SendEventResponse, error) {
		if err := s.options.Sync.HandleBatteryStatus(uint8(input.Body.Level), input.Body.Charging); err != nil {
			return nil, controlError("Failed to report battery", err)
		}

		resp := &models.SendEventResponse{}
		resp.Body.Queued = true
		resp.Body.QueueLength = s.options.Sync.QueueLen()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-sync-settings",
		Method:      http.MethodGet,
		Path:        "/api/sync/auto",
		Summary:     "Get Sync Settings",
		Description: "Get the auto-sync flag, button feedback settings and queue depth",
		Tags:        []string{"sync"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SyncSettingsResponse, error) {
		return &models.SyncSettingsResponse{Body: s.syncSettings()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-auto-sync",
		Method:      http.MethodPut,
		Path:        "/api/sync/auto",
		Summary:     "Set Auto-Sync",
		Description: "Enable or disable dispatch. Events dequeued while disabled are dropped.",
		Tags:        []string{"sync"},
		Errors:      []int{401, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.EnabledRequest) (*models.SyncSettingsResponse, error) {
		if err := s.options.Sync.SetAutoSync(input.Body.Enabled); err != nil {
			return nil, controlError("Failed to set auto-sync", err)
		}
		return &models.SyncSettingsResponse{Body: s.syncSettings()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-feedback",
		Method:      http.MethodPut,
		Path:        "/api/sync/feedback",
		Summary:     "Set Button Feedback",
		Description: "Set brightness and duration of the button-press flash",
		Tags:        []string{"sync"},
		Errors:      []int{401, 422, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.FeedbackRequest) (*models.SyncSettingsResponse, error) {
		d := time.Duration(input.Body.DurationMs) * time.Millisecond
		if err := s.options.Sync.SetFeedback(uint8(input.Body.Brightness), d); err != nil {
			return nil, controlError("Failed to set feedback", err)
		}
		return &models.SyncSettingsResponse{Body: s.syncSettings()}, nil
	})
}
