package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/revsched/internal/adapters/mq/queue"
	"github.com/okian/revsched/internal/adapters/mq/worker"
	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/internal/domain/pipeline"
	logging "github.com/okian/revsched/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockProcessor struct {
	mu     sync.Mutex
	errs   map[string]error
	panics map[string]bool
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{errs: map[string]error{}, panics: map[string]bool{}}
}

func (m *mockProcessor) Process(_ context.Context, doc model.Document) (pipeline.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics[doc.ID] {
		panic("boom")
	}
	if err := m.errs[doc.ID]; err != nil {
		return pipeline.Output{}, err
	}
	return pipeline.Output{PolicyVersion: "test", Issues: []string{doc.ID}}, nil
}

type mockSink struct {
	results chan model.Result
	err     error
}

func newMockSink() *mockSink {
	return &mockSink{results: make(chan model.Result, 100)}
}

func (s *mockSink) Put(_ context.Context, r model.Result) error {
	s.results <- r
	return s.err
}

func (s *mockSink) next() (model.Result, bool) {
	select {
	case r := <-s.results:
		return r, true
	case <-time.After(time.Second):
		return model.Result{}, false
	}
}

func newJob(id string) *model.Job {
	return &model.Job{ID: "job-" + id, Seq: 1, Document: model.Document{ID: id}, SubmittedAt: time.Now()}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		proc := newMockProcessor()
		sink := newMockSink()
		w := worker.NewInMemoryWorker(q, proc, sink, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job succeeds", func() {
			q.Enqueue(ctx, newJob("doc-1"))
			res, ok := sink.next()

			convey.Convey("Then a done result with output is stored", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(res.JobID, convey.ShouldEqual, "job-doc-1")
				convey.So(res.DocumentID, convey.ShouldEqual, "doc-1")
				convey.So(res.Status, convey.ShouldEqual, model.StatusDone)
				convey.So(res.Output, convey.ShouldNotBeNil)
				convey.So(res.Output.Issues, convey.ShouldResemble, []string{"doc-1"})
				convey.So(res.FinishedAt, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the processor fails", func() {
			proc.errs["doc-2"] = errors.New("cancelled")
			q.Enqueue(ctx, newJob("doc-2"))
			res, ok := sink.next()

			convey.Convey("Then a failed result is stored", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(res.Status, convey.ShouldEqual, model.StatusFailed)
				convey.So(res.Error, convey.ShouldEqual, "cancelled")
				convey.So(res.Output, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the processor panics", func() {
			proc.panics["doc-3"] = true
			q.Enqueue(ctx, newJob("doc-3"))
			res, ok := sink.next()

			convey.Convey("Then the worker survives and records the failure", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(res.Status, convey.ShouldEqual, model.StatusFailed)
				convey.So(res.Error, convey.ShouldContainSubstring, worker.ErrPanic.Error())

				q.Enqueue(ctx, newJob("doc-4"))
				next, ok := sink.next()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(next.Status, convey.ShouldEqual, model.StatusDone)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it stops without error", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(50))
		sink := newMockSink()
		p := worker.NewPool(4, q, newMockProcessor(), sink)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)

		convey.Convey("When jobs are queued and the pool shuts down", func() {
			for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
				convey.So(q.Enqueue(ctx, newJob(id)), convey.ShouldBeTrue)
			}
			err := p.Shutdown(context.Background())

			convey.Convey("Then every queued job is drained", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Size(), convey.ShouldEqual, 4)
				convey.So(p.Active(), convey.ShouldEqual, 0)
				convey.So(len(sink.results), convey.ShouldEqual, 6)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When created with a non-positive count", func() {
			p2 := worker.NewPool(0, q, newMockProcessor(), sink)

			convey.Convey("Then a CPU based default is used", func() {
				convey.So(p2.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})
	})
}
