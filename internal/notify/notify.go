package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a fire-and-forget fact about a sign-off or lifecycle change.
// Delivery is best-effort: a failed publish never affects the operation
// that produced the event.
type Event struct {
	Type        string     `json:"type"`
	ReleaseID   uuid.UUID  `json:"release_id"`
	CriterionID *uuid.UUID `json:"criterion_id,omitempty"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
	Status      string     `json:"status,omitempty"`
	At          time.Time  `json:"at"`
}

const (
	EventSignOffRecorded   = "sign_off.recorded"
	EventSignOffRevoked    = "sign_off.revoked"
	EventReleaseTransition = "release.transitioned"
	EventReleaseDeleted    = "release.deleted"
)

type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier { return &noopNotifier{} }

func (n *noopNotifier) Publish(ctx context.Context, ev Event) error { return nil }
func (n *noopNotifier) Close() error                                { return nil }
