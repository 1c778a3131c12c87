package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/reframer/internal/events"
)

// ConnectedEvent is the first message of every event stream.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established"`
	Timestamp string `json:"timestamp"`
}

// EventsRequest optionally narrows the stream to one unit.
type EventsRequest struct {
	Unit string `query:"unit" doc:"Only events of this unit ID, plus batch-wide events"`
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time unit progress, unit results, batch completion and newly discovered sources",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":       ConnectedEvent{},
		"unit-started":    events.UnitStartedEvent{},
		"unit-progress":   events.UnitProgressEvent{},
		"unit-finished":   events.UnitFinishedEvent{},
		"batch-finished":  events.BatchFinishedEvent{},
		"file-discovered": events.FileDiscoveredEvent{},
	}, func(ctx context.Context, input *EventsRequest, send sse.Sender) {
		// Progress events are frequent; a slow client drops some of them.
		eventCh := make(chan any, 64)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.UnitStartedEvent](s.eventBus, eventCh, input.Unit),
			events.SubscribeToChannel[events.UnitProgressEvent](s.eventBus, eventCh, input.Unit),
			events.SubscribeToChannel[events.UnitFinishedEvent](s.eventBus, eventCh, input.Unit),
			events.SubscribeToChannel[events.BatchFinishedEvent](s.eventBus, eventCh, input.Unit),
			events.SubscribeToChannel[events.FileDiscoveredEvent](s.eventBus, eventCh, input.Unit),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(ConnectedEvent{
			Message:   "SSE connection established",
			Timestamp: time.Now().Format(time.RFC3339),
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
