package providers

import (
	"context"

	"github.com/clinicdesk/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// appointment lifecycle events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelAppointments is the channel for all appointment updates
	EventChannelAppointments = "appointments"
)
