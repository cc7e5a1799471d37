package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kyz7/vanilla/internal/access"
	"github.com/Kyz7/vanilla/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Actions recorded after each committed mutation.
const (
	Created  = "created"
	Updated  = "updated"
	Deleted  = "deleted"
	Restored = "restored"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Event describes one mutation of one entity.
type Event struct {
	Action    string
	Entity    string
	EntityID  string
	UserID    uint
	RequestID string
	Message   string
	Object    any
	At        time.Time
}

// Handler reacts to an event. Handler errors are logged, never returned.
type Handler func(ctx context.Context, ev Event) error

// Tracker logs every mutation and dispatches it to registered handlers.
// When persistence is enabled each event is also stored as a UserAction.
type Tracker struct {
	db       *gorm.DB
	log      zerolog.Logger
	persist  bool
	now      func() time.Time
	mu       sync.RWMutex
	handlers []Handler
}

func NewTracker(db *gorm.DB, log zerolog.Logger, persist bool) *Tracker {
	t := &Tracker{
		db:      db,
		log:     log,
		persist: persist,
		now:     time.Now,
	}
	if persist {
		t.handlers = append(t.handlers, t.store)
	}
	return t
}

// Handle registers h for every event.
func (t *Tracker) Handle(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}

// On registers h for one action on one entity kind.
func (t *Tracker) On(entity, action string, h Handler) {
	t.Handle(func(ctx context.Context, ev Event) error {
		if ev.Entity != entity || ev.Action != action {
			return nil
		}
		return h(ctx, ev)
	})
}

// Record emits an event for obj of the given kind.
func (t *Tracker) Record(ctx context.Context, entity string, id any, obj any, action, message string) {
	ev := Event{
		Action:    action,
		Entity:    entity,
		EntityID:  fmt.Sprint(id),
		RequestID: RequestIDFrom(ctx),
		Message:   message,
		Object:    obj,
		At:        t.now(),
	}
	if actor := access.ActorFrom(ctx); actor != nil {
		ev.UserID = actor.GetID()
	}

	t.log.Info().
		Str("entity", ev.Entity).
		Str("entity_id", ev.EntityID).
		Str("action", ev.Action).
		Uint("user_id", ev.UserID).
		Str("request_id", ev.RequestID).
		Msgf("%s %s. User ID: %d", ev.Entity, ev.Action, ev.UserID)

	t.mu.RLock()
	handlers := append([]Handler(nil), t.handlers...)
	t.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			t.log.Error().Err(err).Str("entity", ev.Entity).Str("action", ev.Action).Msg("user action handler failed")
		}
	}
}

func (t *Tracker) store(ctx context.Context, ev Event) error {
	return t.db.WithContext(ctx).Create(&models.UserAction{
		Name:      ev.Action,
		Datetime:  ev.At,
		Message:   ev.Message,
		Entity:    ev.Entity,
		EntityID:  ev.EntityID,
		UserID:    ev.UserID,
		RequestID: ev.RequestID,
	}).Error
}
