package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/statuslight/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of status changes, rejections, expiries, brightness changes, sync bus activity and render errors",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"status-changed":     events.StatusChangedEvent{},
		"status-rejected":    events.StatusRejectedEvent{},
		"status-expired":     events.StatusExpiredEvent{},
		"brightness-changed": events.BrightnessChangedEvent{},
		"sync-event":         events.SyncEvent{},
		"render-error":       events.RenderErrorEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.StatusChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StatusRejectedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StatusExpiredEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.BrightnessChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SyncEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RenderErrorEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// The current status goes first so clients need no separate GET.
		st := s.options.Status.Snapshot()
		if err := send.Data(events.StatusChangedEvent{
			Status:     st.Status.String(),
			Animation:  st.Animation.String(),
			Priority:   st.Priority.String(),
			DurationMs: st.Duration.Milliseconds(),
			Color:      st.Color.Hex(),
			Timestamp:  timestamp(),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
