// Package lifecycle owns the placement state machine: optimistic pending
// inserts, settlement by the resolution workers, rollback on analysis
// failure, and durable persistence through the debounced saver.
package lifecycle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sailorworks/verigrant/internal/adapters/mq/queue"
	"github.com/sailorworks/verigrant/internal/adapters/repository"
	"github.com/sailorworks/verigrant/internal/domain/alignment"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

const (
	defaultAvatarAsset = "/assets/default-avatar.png"
	highlightDuration  = 3 * time.Second
	eventBuffer        = 64
)

// EventType tags a lifecycle notification.
type EventType string

// Lifecycle event types.
const (
	EventAdded         EventType = "added"
	EventResolved      EventType = "resolved"
	EventRolledBack    EventType = "rolled_back"
	EventMoved         EventType = "moved"
	EventRemoved       EventType = "removed"
	EventCleared       EventType = "cleared"
	EventMintFulfilled EventType = "mint_fulfilled"
)

// Event is one chart change notification. Delivery is best-effort:
// slow consumers lose events, never block the state machine.
type Event struct {
	Type      EventType       `json:"type"`
	Placement model.Placement `json:"placement,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Enqueuer hands resolution jobs to the background pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, j queue.Job) bool
}

// Saver persists full chart snapshots.
type Saver interface {
	Save(placements []model.Placement)
	Flush(ctx context.Context)
}

// Lifecycle is the placement state machine. All mutations run under one
// lock; reads hand out copies.
type Lifecycle struct {
	store   repository.Store
	queue   Enqueuer
	saver   Saver
	avatar  string
	logger  logger.Logger
	events  chan Event
	nowFunc func() time.Time

	mu         sync.RWMutex
	placements []model.Placement
	processing bool
}

// New creates a lifecycle over the given store, queue and saver.
func New(store repository.Store, q Enqueuer, saver Saver, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:   store,
		queue:   q,
		saver:   saver,
		avatar:  defaultAvatarAsset,
		logger:  logger.Get().Named("lifecycle"),
		events:  make(chan Event, eventBuffer),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load restores the chart from the durable store. Any loading flags left
// over from an interrupted session are cleared; their pending resolutions
// were abandoned with the process.
func (l *Lifecycle) Load(ctx context.Context) error {
	placements, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load placements: %w", err)
	}

	for i := range placements {
		placements[i].Loading = false
	}

	l.mu.Lock()
	l.placements = placements
	l.processing = false
	l.mu.Unlock()

	metrics.UpdatePlacementsTotal(len(placements))
	l.logger.Info(ctx, "chart loaded", logger.Int("placements", len(placements)))
	return nil
}

// AddPlacement optimistically inserts a pending entry and enqueues its
// resolution. Only one add may be in flight at a time.
func (l *Lifecycle) AddPlacement(ctx context.Context, username string, mode model.Mode) (model.Placement, error) {
	username = model.NormalizeUsername(username)
	if username == "" {
		return model.Placement{}, ErrEmptyUsername
	}
	if !mode.Valid() {
		return model.Placement{}, ErrInvalidMode
	}

	l.mu.Lock()
	if l.processing {
		l.mu.Unlock()
		return model.Placement{}, ErrBusy
	}
	key := model.UsernameKey(username)
	for _, p := range l.placements {
		if p.Key() == key {
			l.mu.Unlock()
			return model.Placement{}, ErrDuplicateUsername
		}
	}

	p := model.Placement{
		ID:           model.NewPlacementID(mode),
		Username:     username,
		Position:     provisionalPosition(),
		AvatarSource: l.avatar,
		Loading:      true,
		Timestamp:    l.nowFunc(),
	}
	l.placements = append(l.placements, p)
	l.processing = true
	l.mu.Unlock()

	if !l.queue.Enqueue(ctx, queue.Job{PlacementID: p.ID, Username: username, Mode: mode}) {
		l.mu.Lock()
		l.removeLocked(p.ID)
		l.processing = false
		l.mu.Unlock()
		return model.Placement{}, ErrQueueFull
	}

	metrics.RecordPlacementAdded()
	l.persist()
	l.publish(Event{Type: EventAdded, Placement: p})
	return p, nil
}

// ApplyManual settles a manually placed entry with its resolved avatar.
func (l *Lifecycle) ApplyManual(ctx context.Context, placementID, avatarSource string) error {
	l.mu.Lock()
	i := l.indexLocked(placementID)
	if i < 0 {
		l.processing = false
		l.mu.Unlock()
		return ErrNotFound
	}
	l.placements[i].AvatarSource = avatarSource
	l.placements[i].Loading = false
	p := l.placements[i]
	l.processing = false
	l.mu.Unlock()

	l.persist()
	l.publish(Event{Type: EventResolved, Placement: p})
	l.logger.Debug(ctx, "manual placement settled", logger.String("id", placementID))
	return nil
}

// ApplyAI settles an AI placement at the analyzed position. The entry is
// highlighted briefly so the chart can call attention to fresh verdicts.
func (l *Lifecycle) ApplyAI(ctx context.Context, placementID string, result model.AlignmentResult, avatarSource string) error {
	l.mu.Lock()
	i := l.indexLocked(placementID)
	if i < 0 {
		l.processing = false
		l.mu.Unlock()
		return ErrNotFound
	}
	l.placements[i].Position = alignment.PositionFromScores(result.LawfulChaotic, result.GoodEvil)
	l.placements[i].AvatarSource = avatarSource
	l.placements[i].IsAiPlaced = true
	l.placements[i].Analysis = &model.Analysis{
		Explanation:   result.Explanation,
		LawfulChaotic: result.LawfulChaotic,
		GoodEvil:      result.GoodEvil,
	}
	l.placements[i].Loading = false
	l.placements[i].NewlyAnalyzed = true
	p := l.placements[i]
	l.processing = false
	l.mu.Unlock()

	time.AfterFunc(highlightDuration, func() {
		l.clearHighlight(placementID)
	})

	l.persist()
	l.publish(Event{Type: EventResolved, Placement: p})
	l.logger.Debug(ctx, "ai placement settled",
		logger.String("id", placementID),
		logger.Int("lawfulChaotic", result.LawfulChaotic),
		logger.Int("goodEvil", result.GoodEvil),
	)
	return nil
}

// Rollback removes a pending entry whose resolution failed and surfaces
// the user-facing message.
func (l *Lifecycle) Rollback(ctx context.Context, placementID, message string) error {
	l.mu.Lock()
	p, ok := l.removeLocked(placementID)
	l.processing = false
	l.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	metrics.RecordPlacementRolledBack()
	l.persist()
	l.publish(Event{Type: EventRolledBack, Placement: p, Message: message})
	l.logger.Warn(ctx, "placement rolled back",
		logger.String("id", placementID),
		logger.String("reason", message),
	)
	return nil
}

// Move repositions a manually placed entry. AI-placed entries are locked
// against dragging.
func (l *Lifecycle) Move(_ context.Context, placementID string, pos model.Position) (model.Placement, error) {
	l.mu.Lock()
	i := l.indexLocked(placementID)
	if i < 0 {
		l.mu.Unlock()
		return model.Placement{}, ErrNotFound
	}
	if l.placements[i].IsAiPlaced {
		l.mu.Unlock()
		return model.Placement{}, ErrAiPlaced
	}
	l.placements[i].Position = pos.Clamped()
	p := l.placements[i]
	l.mu.Unlock()

	l.persist()
	l.publish(Event{Type: EventMoved, Placement: p})
	return p, nil
}

// Remove deletes one entry. A durable-store failure is reported through
// logs and metrics but the in-memory removal stands.
func (l *Lifecycle) Remove(ctx context.Context, placementID string) error {
	l.mu.Lock()
	p, ok := l.removeLocked(placementID)
	l.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if err := l.store.Remove(ctx, placementID); err != nil {
		metrics.RecordStoreError()
		l.logger.Warn(ctx, "durable remove failed", logger.String("id", placementID), logger.Error(err))
	}
	l.persist()
	l.publish(Event{Type: EventRemoved, Placement: p})
	return nil
}

// Clear wipes the chart.
func (l *Lifecycle) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.placements = nil
	l.processing = false
	l.mu.Unlock()

	if err := l.store.Clear(ctx); err != nil {
		metrics.RecordStoreError()
		l.logger.Warn(ctx, "durable clear failed", logger.Error(err))
	}
	metrics.UpdatePlacementsTotal(0)
	l.publish(Event{Type: EventCleared})
	return nil
}

// Placements returns a copy of the current chart in insertion order.
func (l *Lifecycle) Placements(_ context.Context) []model.Placement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Placement, len(l.placements))
	copy(out, l.placements)
	return out
}

// Count returns the number of entries on the chart.
func (l *Lifecycle) Count(_ context.Context) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.placements)
}

// Events exposes the notification stream.
func (l *Lifecycle) Events() <-chan Event {
	return l.events
}

// PublishMint surfaces a mint fulfillment on the event stream.
func (l *Lifecycle) PublishMint(address string, tokenID uint64) {
	l.publish(Event{
		Type:    EventMintFulfilled,
		Message: fmt.Sprintf("token %d minted for %s", tokenID, address),
	})
}

// Flush forces any pending snapshot to the durable store.
func (l *Lifecycle) Flush(ctx context.Context) {
	l.saver.Flush(ctx)
}

func (l *Lifecycle) clearHighlight(placementID string) {
	l.mu.Lock()
	i := l.indexLocked(placementID)
	if i >= 0 {
		l.placements[i].NewlyAnalyzed = false
	}
	l.mu.Unlock()
}

// indexLocked finds a placement by id. Caller holds the lock.
func (l *Lifecycle) indexLocked(placementID string) int {
	for i, p := range l.placements {
		if p.ID == placementID {
			return i
		}
	}
	return -1
}

// removeLocked deletes a placement preserving order. Caller holds the lock.
func (l *Lifecycle) removeLocked(placementID string) (model.Placement, bool) {
	i := l.indexLocked(placementID)
	if i < 0 {
		return model.Placement{}, false
	}
	p := l.placements[i]
	l.placements = append(l.placements[:i], l.placements[i+1:]...)
	return p, true
}

// persist hands the current snapshot to the debounced saver.
func (l *Lifecycle) persist() {
	l.mu.RLock()
	snapshot := make([]model.Placement, len(l.placements))
	copy(snapshot, l.placements)
	l.mu.RUnlock()

	metrics.UpdatePlacementsTotal(len(snapshot))
	l.saver.Save(snapshot)
}

// publish emits an event without ever blocking.
func (l *Lifecycle) publish(evt Event) {
	select {
	case l.events <- evt:
	default:
	}
}

// provisionalPosition scatters pending entries near the middle of the
// chart until resolution assigns the real spot.
func provisionalPosition() model.Position {
	return model.Position{
		X: 30 + rand.Float64()*40,
		Y: 30 + rand.Float64()*40,
	}
}
