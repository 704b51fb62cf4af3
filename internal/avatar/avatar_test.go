package avatar_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sailorworks/verigrant/internal/avatar"
	"github.com/sailorworks/verigrant/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// flatImage is a single-color placeholder-style avatar.
func flatImage() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return encodePNG(img)
}

// colorfulImage looks like a real photo: every pixel differs.
func colorfulImage() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: uint8(x*y) % 255, A: 255})
		}
	}
	return encodePNG(img)
}

func TestResolve(t *testing.T) {
	Convey("Given an avatar proxy", t, func() {
		ctx := context.Background()

		Convey("When one candidate is a flat placeholder and another a photo", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case strings.Contains(r.URL.Path, "@alice"):
					_, _ = w.Write(flatImage())
				case strings.Contains(r.URL.Path, "twitter/alice"):
					_, _ = w.Write(colorfulImage())
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer srv.Close()

			r := avatar.New(srv.URL)
			got := r.Resolve(ctx, "@alice")

			Convey("Then the most colorful candidate wins", func() {
				So(got, ShouldEqual, srv.URL+"/twitter/alice")
			})
		})

		Convey("When every candidate fails", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			r := avatar.New(srv.URL)

			Convey("Then the local default asset is used", func() {
				So(r.Resolve(ctx, "alice"), ShouldEqual, avatar.DefaultAsset)
			})
		})

		Convey("When a custom fallback is configured", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			defer srv.Close()

			r := avatar.New(srv.URL, avatar.WithFallback("/img/anon.png"))
			So(r.Resolve(ctx, "alice"), ShouldEqual, "/img/anon.png")
			So(r.Fallback(), ShouldEqual, "/img/anon.png")
		})

		Convey("When a candidate serves a non-image body", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.Contains(r.URL.Path, "@alice") {
					_, _ = w.Write([]byte("<html>not an image</html>"))
					return
				}
				_, _ = w.Write(flatImage())
			}))
			defer srv.Close()

			r := avatar.New(srv.URL)

			Convey("Then the undecodable candidate is skipped", func() {
				So(r.Resolve(ctx, "alice"), ShouldEqual, srv.URL+"/twitter/alice")
			})
		})
	})
}
