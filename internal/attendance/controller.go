package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dikshaa-012/event-checkin-app/internal/models"
)

// Controller enforces the join/leave state machine. It is the sole writer of
// the ledger and the registry: every accepted transition writes one ledger
// mutation, one registry mutation and emits one delta, in that order.
// Join/Leave for the same (user, event) pair are serialized by a keyed mutex;
// different pairs proceed in parallel.
type Controller struct {
	ledger   Ledger
	registry *Registry
	broker   *Broker
	events   EventDirectory
	logger   *zap.Logger

	mu    sync.Mutex
	pairs map[pairKey]*pairLock
}

type pairKey struct {
	eventID uuid.UUID
	userID  uuid.UUID
}

type pairLock struct {
	sync.Mutex
	refs int
}

// NewController creates a lifecycle controller.
func NewController(ledger Ledger, registry *Registry, broker *Broker, events EventDirectory, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		ledger:   ledger,
		registry: registry,
		broker:   broker,
		events:   events,
		logger:   logger,
		pairs:    make(map[pairKey]*pairLock),
	}
}

// lockPair acquires the mutex for a (event, user) pair and returns its
// release func. Locks are reference counted so the map does not grow with
// every pair ever seen.
func (c *Controller) lockPair(k pairKey) func() {
	c.mu.Lock()
	l := c.pairs[k]
	if l == nil {
		l = &pairLock{}
		c.pairs[k] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.pairs, k)
		}
		c.mu.Unlock()
	}
}

func (c *Controller) eventStatus(ctx context.Context, eventID uuid.UUID) (EventStatus, error) {
	status, err := c.events.Status(ctx, eventID)
	if err != nil {
		return EventStatus{}, fmt.Errorf("event directory: %w", err)
	}
	if !status.Exists {
		return status, ErrEventNotFound
	}
	return status, nil
}

// Join records that a user entered an event. Joining while already joined is
// an idempotent no-op: the existing interval ID and current count are
// returned and no delta is emitted.
func (c *Controller) Join(ctx context.Context, eventID uuid.UUID, p models.Participant) (uuid.UUID, int, error) {
	status, err := c.eventStatus(ctx, eventID)
	if err != nil {
		return uuid.Nil, 0, err
	}
	if status.Closed {
		return uuid.Nil, 0, ErrEventClosed
	}

	unlock := c.lockPair(pairKey{eventID: eventID, userID: p.ID})
	defer unlock()

	open, err := c.ledger.FindOpen(ctx, eventID, p.ID)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			c.logInvariantViolation(eventID, p.ID, err)
		}
		return uuid.Nil, 0, err
	}
	if open != nil {
		return open.ID, c.registry.Count(eventID), nil
	}

	id, err := c.ledger.InsertOpen(ctx, eventID, p.ID, time.Now())
	if err != nil {
		return uuid.Nil, 0, err
	}
	count := c.registry.Upsert(eventID, p)
	c.broker.Publish(models.PresenceDelta{
		EventID:        eventID,
		Kind:           models.DeltaJoined,
		Participant:    p,
		ResultingCount: count,
	})
	c.logger.Debug("user joined event",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", p.ID.String()),
		zap.Int("count", count),
	)
	return id, count, nil
}

// Leave records that a user left an event. Leaving without an open interval
// is an idempotent no-op: the current count is returned and no delta is
// emitted.
func (c *Controller) Leave(ctx context.Context, eventID uuid.UUID, p models.Participant) (int, error) {
	if _, err := c.eventStatus(ctx, eventID); err != nil {
		return 0, err
	}

	unlock := c.lockPair(pairKey{eventID: eventID, userID: p.ID})
	defer unlock()

	open, err := c.ledger.FindOpen(ctx, eventID, p.ID)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			c.logInvariantViolation(eventID, p.ID, err)
		}
		return 0, err
	}
	if open == nil {
		return c.registry.Count(eventID), nil
	}

	if err := c.ledger.CloseInterval(ctx, open.ID, time.Now()); err != nil {
		return 0, err
	}
	count := c.registry.Remove(eventID, p.ID)
	c.broker.Publish(models.PresenceDelta{
		EventID:        eventID,
		Kind:           models.DeltaLeft,
		Participant:    p,
		ResultingCount: count,
	})
	c.logger.Debug("user left event",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", p.ID.String()),
		zap.Int("count", count),
	)
	return count, nil
}

// Attending reports whether the user has an open interval for the event.
// This reads the ledger, not the registry, so the answer survives restarts.
func (c *Controller) Attending(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	if _, err := c.eventStatus(ctx, eventID); err != nil {
		return false, err
	}
	open, err := c.ledger.FindOpen(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			c.logInvariantViolation(eventID, userID, err)
			// the pair is present, however many open rows it has
			return true, nil
		}
		return false, err
	}
	return open != nil, nil
}

func (c *Controller) logInvariantViolation(eventID, userID uuid.UUID, err error) {
	c.logger.Error("attendance invariant violated",
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID.String()),
		zap.Error(err),
	)
}
