package queue_test

import (
	"context"
	"testing"

	"github.com/sailorworks/verigrant/internal/adapters/mq/queue"
	"github.com/sailorworks/verigrant/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a bounded in-memory queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		job := queue.Job{PlacementID: "manual-1-aaaa", Username: "alice", Mode: model.ModeManual}

		Convey("When enqueuing within capacity", func() {
			So(q.Enqueue(ctx, job), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 1)

			Convey("Then the job comes back out", func() {
				got := <-q.Dequeue(ctx)
				So(got.PlacementID, ShouldEqual, "manual-1-aaaa")
				So(got.Mode, ShouldEqual, model.ModeManual)
			})
		})

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, job), ShouldBeTrue)
			So(q.Enqueue(ctx, job), ShouldBeTrue)

			Convey("Then further enqueues report backpressure", func() {
				So(q.Enqueue(ctx, job), ShouldBeFalse)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)

			Convey("Then enqueues fail", func() {
				So(q.Enqueue(ctx, job), ShouldBeFalse)
			})

			Convey("Then the dequeue channel closes", func() {
				_, ok := <-q.Dequeue(ctx)
				So(ok, ShouldBeFalse)
			})

			Convey("Then closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
