package scraper_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sailorworks/verigrant/internal/scraper"
	"github.com/sailorworks/verigrant/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

func newSourceServer(sessionCalls *atomic.Int32, handler http.HandlerFunc) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		sessionCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
	})
	mux.HandleFunc("/profiles/", handler)
	return httptest.NewServer(mux)
}

func TestClientFetchProfile(t *testing.T) {
	Convey("Given a profile source server", t, func() {
		var sessionCalls atomic.Int32

		Convey("When fetching an existing profile", func() {
			var gotSessionID atomic.Value
			srv := newSourceServer(&sessionCalls, func(w http.ResponseWriter, r *http.Request) {
				gotSessionID.Store(r.Header.Get("X-Session-ID"))
				_ = json.NewEncoder(w).Encode(map[string]any{
					"exists": true,
					"profile": map[string]any{
						"username": "alice",
						"name":     "Alice",
						"bio":      "chaotic good",
						"posts":    []map[string]any{{"text": "hi", "likes": 3, "reposts": 1}},
					},
				})
			})
			defer srv.Close()

			c := scraper.NewClient(srv.URL, "token")
			profile, err := c.FetchProfile(context.Background(), "alice")
			So(gotSessionID.Load(), ShouldEqual, "sess-1")
			So(err, ShouldBeNil)
			So(profile.Name, ShouldEqual, "Alice")
			So(len(profile.Posts), ShouldEqual, 1)
			So(profile.Empty(), ShouldBeFalse)
		})

		Convey("When the profile does not exist", func() {
			srv := newSourceServer(&sessionCalls, func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"exists": false})
			})
			defer srv.Close()

			c := scraper.NewClient(srv.URL, "token")
			_, err := c.FetchProfile(context.Background(), "ghost")
			So(err, ShouldEqual, scraper.ErrNoProfile)
		})

		Convey("When the source returns 404", func() {
			srv := newSourceServer(&sessionCalls, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			defer srv.Close()

			c := scraper.NewClient(srv.URL, "token")
			_, err := c.FetchProfile(context.Background(), "nobody")
			So(err, ShouldEqual, scraper.ErrUserNotFound)
		})

		Convey("When the source rejects the session", func() {
			srv := newSourceServer(&sessionCalls, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})
			defer srv.Close()

			c := scraper.NewClient(srv.URL, "token")
			_, err := c.FetchProfile(context.Background(), "alice")
			So(err, ShouldEqual, scraper.ErrLoginFailed)
		})

		Convey("When many goroutines fetch concurrently", func() {
			srv := newSourceServer(&sessionCalls, func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"exists":  true,
					"profile": map[string]any{"username": "alice", "name": "Alice"},
				})
			})
			defer srv.Close()

			c := scraper.NewClient(srv.URL, "token")
			errs := make(chan error, 8)
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := c.FetchProfile(context.Background(), "alice")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			Convey("Then all fetches succeed and the session is established exactly once", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
				So(sessionCalls.Load(), ShouldEqual, 1)
			})
		})
	})
}

func TestProfileEmpty(t *testing.T) {
	Convey("Given profiles with varying signal", t, func() {
		So((&scraper.Profile{}).Empty(), ShouldBeTrue)
		So((*scraper.Profile)(nil).Empty(), ShouldBeTrue)
		So((&scraper.Profile{Bio: "x"}).Empty(), ShouldBeFalse)
		So((&scraper.Profile{Name: "x"}).Empty(), ShouldBeFalse)
		So((&scraper.Profile{Posts: []scraper.Post{{Text: "hi"}}}).Empty(), ShouldBeFalse)
	})
}
