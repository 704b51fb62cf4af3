package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	service "github.com/sailorworks/verigrant/internal/app"
	"github.com/sailorworks/verigrant/internal/chain"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/internal/lifecycle"
	"github.com/sailorworks/verigrant/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

type fixedAnalyzer struct {
	result model.AlignmentResult
}

func (f *fixedAnalyzer) Analyze(_ context.Context, _ string) model.AlignmentResult {
	return f.result
}

type fixedAvatars struct{}

func (fixedAvatars) Resolve(_ context.Context, _ string) string {
	return "https://example.com/a.png"
}

type fakeRegistry struct {
	personas map[string]model.PersonaData
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{personas: make(map[string]model.PersonaData)}
}

func (f *fakeRegistry) SetPersona(_ context.Context, address string, persona model.PersonaData) (string, error) {
	f.personas[address] = persona
	return "0xsettx", nil
}

func (f *fakeRegistry) GetPersona(_ context.Context, address string) (model.PersonaSnapshot, error) {
	persona, ok := f.personas[address]
	if !ok {
		return model.PersonaSnapshot{}, nil
	}
	return model.PersonaSnapshot{
		LawfulChaotic: int(persona.LawfulChaotic),
		GoodEvil:      int(persona.GoodEvil),
		PrimaryTrait:  persona.PrimaryTrait,
		Exists:        true,
	}, nil
}

func (f *fakeRegistry) RequestMint(_ context.Context, _ string) (string, error) {
	return "0xminttx", nil
}

func (f *fakeRegistry) TokenOf(_ context.Context, _ string) (uint64, bool, error) {
	return 9, true, nil
}

func (f *fakeRegistry) SubscribeMints(_ context.Context, _ string) (<-chan uint64, func(), error) {
	ch := make(chan uint64, 1)
	ch <- 9
	return ch, func() {}, nil
}

func newStartedService(t *testing.T, analyzer *fixedAnalyzer, registry chain.Registry) *service.Service {
	t.Helper()

	opts := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithStorePath(filepath.Join(t.TempDir(), "chart.db")),
		service.WithSaveDebounce(20 * time.Millisecond),
		service.WithAnalyzer(analyzer),
		service.WithAvatarResolver(fixedAvatars{}),
		service.WithMintPollInterval(10 * time.Millisecond),
	}
	if registry != nil {
		opts = append(opts, service.WithRegistry(registry))
	}

	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() { svc.Stop(context.Background()) })
	return svc
}

func waitSettled(t *testing.T, svc *service.Service, id string) model.Placement {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		for _, p := range svc.Placements(context.Background()) {
			if p.ID == id && !p.Loading {
				return p
			}
		}
		select {
		case <-deadline:
			t.Fatal("placement never settled")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServiceEndToEnd(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		analyzer := &fixedAnalyzer{result: model.AlignmentResult{
			Explanation:   "chaotic good poster",
			LawfulChaotic: 60,
			GoodEvil:      -80,
		}}
		svc := newStartedService(t, analyzer, nil)

		Convey("When an AI placement is added", func() {
			p, err := svc.AddPlacement(ctx, "alice", model.ModeAI)
			So(err, ShouldBeNil)
			So(p.Loading, ShouldBeTrue)

			Convey("Then the workers settle it at the analyzed position", func() {
				settled := waitSettled(t, svc, p.ID)
				So(settled.IsAiPlaced, ShouldBeTrue)
				So(settled.Position.X, ShouldEqual, 80)
				So(settled.Position.Y, ShouldEqual, 10)
				So(settled.AvatarSource, ShouldEqual, "https://example.com/a.png")
			})
		})

		Convey("When stats are read", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["chainEnabled"], ShouldEqual, false)
		})

		Convey("When chain operations run without a registry", func() {
			_, err := svc.PrepareCommit(ctx, "0x1111111111111111111111111111111111111111")
			So(err, ShouldEqual, service.ErrChainDisabled)

			_, err = svc.Mint(ctx, "0x1111111111111111111111111111111111111111")
			So(err, ShouldEqual, service.ErrChainDisabled)
		})
	})

	Convey("Given a started service with a failing analyzer", t, func() {
		ctx := context.Background()
		analyzer := &fixedAnalyzer{result: model.AlignmentResult{
			IsError: true,
			Message: "This account doesn't exist.",
		}}
		svc := newStartedService(t, analyzer, nil)

		Convey("When an AI placement is added", func() {
			p, err := svc.AddPlacement(ctx, "ghost", model.ModeAI)
			So(err, ShouldBeNil)

			Convey("Then the entry is rolled back", func() {
				deadline := time.After(3 * time.Second)
				for {
					placements := svc.Placements(ctx)
					if len(placements) == 0 {
						break
					}
					select {
					case <-deadline:
						t.Fatalf("placement %s never rolled back", p.ID)
					case <-time.After(10 * time.Millisecond):
					}
				}
				So(len(svc.Placements(ctx)), ShouldEqual, 0)
			})
		})
	})
}

func TestServiceMintFlow(t *testing.T) {
	const address = "0x1111111111111111111111111111111111111111"

	Convey("Given a started service with a chain registry", t, func() {
		ctx := context.Background()
		registry := newFakeRegistry()
		svc := newStartedService(t, &fixedAnalyzer{}, registry)

		Convey("When minting before any commit", func() {
			_, err := svc.Mint(ctx, address)
			So(err, ShouldEqual, chain.ErrNoSnapshot)
		})

		Convey("When a snapshot is committed first", func() {
			registry.personas[address] = model.PersonaData{PrimaryTrait: "Chaotic Good"}

			txHash, err := svc.Mint(ctx, address)
			So(err, ShouldBeNil)
			So(txHash, ShouldEqual, "0xminttx")

			Convey("Then the fulfillment lands on the event stream", func() {
				deadline := time.After(2 * time.Second)
				for {
					select {
					case evt := <-svc.Events():
						if evt.Type == lifecycle.EventMintFulfilled {
							So(evt.Message, ShouldContainSubstring, "token 9")
							return
						}
					case <-deadline:
						t.Fatal("mint fulfillment never surfaced")
					}
				}
			})
		})

		Convey("When reading the snapshot", func() {
			registry.personas[address] = model.PersonaData{LawfulChaotic: 5, GoodEvil: -7, PrimaryTrait: "True Neutral"}
			snapshot, err := svc.Snapshot(ctx, address)
			So(err, ShouldBeNil)
			So(snapshot.Exists, ShouldBeTrue)
			So(snapshot.PrimaryTrait, ShouldEqual, "True Neutral")
		})
	})
}
