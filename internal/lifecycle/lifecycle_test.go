package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sailorworks/verigrant/internal/adapters/mq/queue"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/internal/lifecycle"
	"github.com/sailorworks/verigrant/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

type stubQueue struct {
	mu     sync.Mutex
	jobs   []queue.Job
	reject bool
}

func (s *stubQueue) Enqueue(_ context.Context, j queue.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.jobs = append(s.jobs, j)
	return true
}

func (s *stubQueue) last() queue.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[len(s.jobs)-1]
}

type stubSaver struct {
	mu    sync.Mutex
	saves [][]model.Placement
}

func (s *stubSaver) Save(placements []model.Placement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, placements)
}

func (s *stubSaver) Flush(_ context.Context) {}

type memStore struct {
	mu         sync.Mutex
	placements []model.Placement
	removeErr  error
	removed    []string
	cleared    int
}

func (m *memStore) Init(_ context.Context) error { return nil }

func (m *memStore) LoadAll(_ context.Context) ([]model.Placement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Placement, len(m.placements))
	copy(out, m.placements)
	return out, nil
}

func (m *memStore) SaveAll(_ context.Context, placements []model.Placement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placements = placements
	return nil
}

func (m *memStore) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return m.removeErr
}

func (m *memStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	return nil
}

func (m *memStore) Close() error { return nil }

func TestAddPlacement(t *testing.T) {
	Convey("Given an empty chart", t, func() {
		ctx := context.Background()
		q := &stubQueue{}
		store := &memStore{}
		l := lifecycle.New(store, q, &stubSaver{})

		Convey("When adding an AI placement", func() {
			p, err := l.AddPlacement(ctx, "@Alice ", model.ModeAI)
			So(err, ShouldBeNil)

			Convey("Then the entry is pending with a normalized handle", func() {
				So(p.Username, ShouldEqual, "Alice")
				So(p.Loading, ShouldBeTrue)
				So(p.IsAiPlaced, ShouldBeFalse)
				So(p.AvatarSource, ShouldNotBeEmpty)
				So(p.Position.X, ShouldBeBetweenOrEqual, 0, 100)
				So(p.Position.Y, ShouldBeBetweenOrEqual, 0, 100)
			})

			Convey("Then a resolution job is enqueued", func() {
				job := q.last()
				So(job.PlacementID, ShouldEqual, p.ID)
				So(job.Username, ShouldEqual, "Alice")
				So(job.Mode, ShouldEqual, model.ModeAI)
			})

			Convey("Then a second add is rejected while resolving", func() {
				_, err := l.AddPlacement(ctx, "bob", model.ModeManual)
				So(err, ShouldEqual, lifecycle.ErrBusy)
			})

			Convey("Then settling releases the busy flag", func() {
				So(l.ApplyManual(ctx, p.ID, "https://example.com/a.png"), ShouldBeNil)
				_, err := l.AddPlacement(ctx, "bob", model.ModeManual)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the username is blank", func() {
			_, err := l.AddPlacement(ctx, "  @ ", model.ModeManual)
			So(err, ShouldEqual, lifecycle.ErrEmptyUsername)
		})

		Convey("When the mode is unknown", func() {
			_, err := l.AddPlacement(ctx, "alice", model.Mode("psychic"))
			So(err, ShouldEqual, lifecycle.ErrInvalidMode)
		})

		Convey("When the handle differs only by case", func() {
			p, err := l.AddPlacement(ctx, "alice", model.ModeManual)
			So(err, ShouldBeNil)
			So(l.ApplyManual(ctx, p.ID, "x"), ShouldBeNil)

			_, err = l.AddPlacement(ctx, "@ALICE", model.ModeManual)
			So(err, ShouldEqual, lifecycle.ErrDuplicateUsername)
		})

		Convey("When the queue rejects the job", func() {
			q.reject = true
			_, err := l.AddPlacement(ctx, "alice", model.ModeAI)
			So(err, ShouldEqual, lifecycle.ErrQueueFull)

			Convey("Then the optimistic insert is reverted", func() {
				So(l.Count(ctx), ShouldEqual, 0)

				Convey("And the busy flag is released", func() {
					q.reject = false
					_, err := l.AddPlacement(ctx, "alice", model.ModeAI)
					So(err, ShouldBeNil)
				})
			})
		})
	})
}

func TestSettlement(t *testing.T) {
	Convey("Given a pending AI placement", t, func() {
		ctx := context.Background()
		l := lifecycle.New(&memStore{}, &stubQueue{}, &stubSaver{})
		p, err := l.AddPlacement(ctx, "alice", model.ModeAI)
		So(err, ShouldBeNil)

		Convey("When the verdict is applied", func() {
			result := model.AlignmentResult{
				Explanation:   "chaotic good poster",
				LawfulChaotic: 60,
				GoodEvil:      -80,
			}
			So(l.ApplyAI(ctx, p.ID, result, "https://example.com/a.png"), ShouldBeNil)

			settled := l.Placements(ctx)[0]

			Convey("Then the position derives from the scores", func() {
				So(settled.Position.X, ShouldEqual, 80)
				So(settled.Position.Y, ShouldEqual, 10)
			})

			Convey("Then the entry carries the analysis", func() {
				So(settled.IsAiPlaced, ShouldBeTrue)
				So(settled.Loading, ShouldBeFalse)
				So(settled.NewlyAnalyzed, ShouldBeTrue)
				So(settled.Analysis, ShouldNotBeNil)
				So(settled.Analysis.Explanation, ShouldEqual, "chaotic good poster")
			})

			Convey("Then the entry is locked against dragging", func() {
				_, err := l.Move(ctx, p.ID, model.Position{X: 1, Y: 1})
				So(err, ShouldEqual, lifecycle.ErrAiPlaced)
			})
		})

		Convey("When the analysis fails", func() {
			So(l.Rollback(ctx, p.ID, "This account doesn't exist."), ShouldBeNil)

			Convey("Then the entry is gone", func() {
				So(l.Count(ctx), ShouldEqual, 0)
			})

			Convey("Then the rollback is announced", func() {
				var got lifecycle.Event
				found := false
				for !found {
					select {
					case evt := <-l.Events():
						if evt.Type == lifecycle.EventRolledBack {
							got = evt
							found = true
						}
					default:
						found = true
					}
				}
				So(got.Type, ShouldEqual, lifecycle.EventRolledBack)
				So(got.Message, ShouldContainSubstring, "doesn't exist")
			})

			Convey("Then adds are unblocked", func() {
				_, err := l.AddPlacement(ctx, "bob", model.ModeAI)
				So(err, ShouldBeNil)
			})
		})

		Convey("When settling an unknown id", func() {
			So(l.ApplyManual(ctx, "missing", "x"), ShouldEqual, lifecycle.ErrNotFound)
			So(l.Rollback(ctx, "missing", "x"), ShouldEqual, lifecycle.ErrNotFound)
		})
	})
}

func TestMoveRemoveClear(t *testing.T) {
	Convey("Given a settled manual placement", t, func() {
		ctx := context.Background()
		store := &memStore{}
		l := lifecycle.New(store, &stubQueue{}, &stubSaver{})
		p, err := l.AddPlacement(ctx, "alice", model.ModeManual)
		So(err, ShouldBeNil)
		So(l.ApplyManual(ctx, p.ID, "https://example.com/a.png"), ShouldBeNil)

		Convey("When moved out of bounds", func() {
			moved, err := l.Move(ctx, p.ID, model.Position{X: 150, Y: -10})
			So(err, ShouldBeNil)

			Convey("Then the position clamps to the chart", func() {
				So(moved.Position.X, ShouldEqual, 100)
				So(moved.Position.Y, ShouldEqual, 0)
			})
		})

		Convey("When removed while the durable delete fails", func() {
			store.removeErr = errors.New("disk gone")
			So(l.Remove(ctx, p.ID), ShouldBeNil)

			Convey("Then the in-memory removal stands", func() {
				So(l.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When removing an unknown id", func() {
			So(l.Remove(ctx, "missing"), ShouldEqual, lifecycle.ErrNotFound)
		})

		Convey("When the chart is cleared", func() {
			So(l.Clear(ctx), ShouldBeNil)
			So(l.Count(ctx), ShouldEqual, 0)
			So(store.cleared, ShouldEqual, 1)
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a store with a stale loading flag", t, func() {
		ctx := context.Background()
		store := &memStore{placements: []model.Placement{
			{ID: "ai-1-aaaa", Username: "alice", Loading: true},
			{ID: "manual-2-bbbb", Username: "bob"},
		}}
		l := lifecycle.New(store, &stubQueue{}, &stubSaver{})

		Convey("When the chart loads", func() {
			So(l.Load(ctx), ShouldBeNil)
			placements := l.Placements(ctx)

			Convey("Then abandoned resolutions are no longer pending", func() {
				So(len(placements), ShouldEqual, 2)
				So(placements[0].Loading, ShouldBeFalse)
				So(placements[1].Loading, ShouldBeFalse)
			})
		})
	})
}
