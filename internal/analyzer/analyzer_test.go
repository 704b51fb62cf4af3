package analyzer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sailorworks/verigrant/internal/analyzer"
	"github.com/sailorworks/verigrant/internal/analyzer/cache"
	"github.com/sailorworks/verigrant/internal/scraper"
	"github.com/sailorworks/verigrant/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

type stubSource struct {
	profile *scraper.Profile
	err     error
	calls   int
}

func (s *stubSource) FetchProfile(_ context.Context, _ string) (*scraper.Profile, error) {
	s.calls++
	return s.profile, s.err
}

type stubModel struct {
	score analyzer.Score
	err   error
	calls int
}

func (s *stubModel) Score(_ context.Context, _ string) (analyzer.Score, error) {
	s.calls++
	return s.score, s.err
}

func richProfile() *scraper.Profile {
	return &scraper.Profile{
		Username: "alice",
		Name:     "Alice",
		Bio:      "professional rule follower",
		Posts:    []scraper.Post{{Text: "I alphabetize my spice rack", Likes: 12, Reposts: 2}},
	}
}

func TestAnalyze(t *testing.T) {
	Convey("Given an analyzer with stubbed dependencies", t, func() {
		ctx := context.Background()
		source := &stubSource{profile: richProfile()}
		scoring := &stubModel{score: analyzer.Score{
			Explanation:   "extremely lawful posting",
			LawfulChaotic: -70,
			GoodEvil:      -10,
		}}
		mem := cache.NewMemory()
		a := analyzer.New(source, scoring, mem)

		Convey("When analyzing a healthy profile", func() {
			result := a.Analyze(ctx, "@Alice")

			Convey("Then it returns the model's scores uncached", func() {
				So(result.IsError, ShouldBeFalse)
				So(result.Cached, ShouldBeFalse)
				So(result.Explanation, ShouldEqual, "extremely lawful posting")
				So(result.LawfulChaotic, ShouldEqual, -70)
				So(result.GoodEvil, ShouldEqual, -10)
			})

			Convey("And a second call is served from cache", func() {
				again := a.Analyze(ctx, "ALICE")
				So(again.Cached, ShouldBeTrue)
				So(again.Explanation, ShouldEqual, "extremely lawful posting")
				So(source.calls, ShouldEqual, 1)
				So(scoring.calls, ShouldEqual, 1)
			})
		})

		Convey("When the source reports no profile", func() {
			source.profile, source.err = nil, scraper.ErrNoProfile
			result := a.Analyze(ctx, "ghost")

			Convey("Then a structured neutral error comes back", func() {
				So(result.IsError, ShouldBeTrue)
				So(result.LawfulChaotic, ShouldEqual, 0)
				So(result.GoodEvil, ShouldEqual, 0)
				So(result.Message, ShouldNotBeEmpty)
			})

			Convey("And the model is never invoked", func() {
				So(scoring.calls, ShouldEqual, 0)
			})

			Convey("And the error is not cached", func() {
				_, ok := mem.Get(ctx, analyzer.CacheKey("ghost"))
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the source login fails", func() {
			source.profile, source.err = nil, scraper.ErrLoginFailed
			result := a.Analyze(ctx, "alice")
			So(result.IsError, ShouldBeTrue)
			So(result.Message, ShouldContainSubstring, "log in")
		})

		Convey("When the user is not found", func() {
			source.profile, source.err = nil, scraper.ErrUserNotFound
			result := a.Analyze(ctx, "alice")
			So(result.IsError, ShouldBeTrue)
			So(result.Message, ShouldContainSubstring, "found")
		})

		Convey("When the source fails for an unknown reason", func() {
			source.profile, source.err = nil, errors.New("socket fell over")
			result := a.Analyze(ctx, "alice")
			So(result.IsError, ShouldBeTrue)
			So(result.Message, ShouldContainSubstring, "try again")
		})

		Convey("When the profile has no posts, bio or name", func() {
			source.profile = &scraper.Profile{Username: "hollow"}
			result := a.Analyze(ctx, "hollow")

			Convey("Then it short-circuits with insufficient data", func() {
				So(result.IsError, ShouldBeTrue)
				So(scoring.calls, ShouldEqual, 0)
			})
		})

		Convey("When the model rejects the credentials", func() {
			scoring.err = fmt.Errorf("%w: 401", analyzer.ErrModelCredentials)
			result := a.Analyze(ctx, "alice")
			So(result.IsError, ShouldBeTrue)
			So(result.Message, ShouldContainSubstring, "credentials")
		})

		Convey("When the model quota is exhausted", func() {
			scoring.err = fmt.Errorf("%w: 429", analyzer.ErrModelQuota)
			result := a.Analyze(ctx, "alice")
			So(result.IsError, ShouldBeTrue)
			So(result.Message, ShouldContainSubstring, "quota")
		})

		Convey("When the model fails generically", func() {
			scoring.err = errors.New("weights caught fire")
			result := a.Analyze(ctx, "alice")
			So(result.IsError, ShouldBeTrue)
			So(result.Message, ShouldContainSubstring, "try again")
		})
	})
}

func TestCacheKey(t *testing.T) {
	Convey("Given raw usernames", t, func() {
		So(analyzer.CacheKey("@Alice "), ShouldEqual, "analysis-v3:alice")
		So(analyzer.CacheKey("alice"), ShouldEqual, analyzer.CacheKey("ALICE"))
	})
}
