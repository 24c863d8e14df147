package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/revsched/internal/adapters/http/api"
	"github.com/okian/revsched/internal/adapters/repository"
	service "github.com/okian/revsched/internal/app"
	"github.com/okian/revsched/internal/domain/agreement"
	"github.com/okian/revsched/internal/domain/model"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const twoRuns = `{"document_id": "doc-1", "runs": [
	{"schedules": [{"item_name": "SEO Pro", "billing_type": "Flat price", "total_price": 1000, "start_date": "2025-01-01", "frequency": "monthly", "periods": 12}]},
	"Here you go: {\"schedules\": [{\"item_name\": \"SEO Pro\", \"billing_type\": \"Flat price\", \"total_price\": 1000, \"start_date\": \"2025-01-01\", \"frequency\": \"monthly\", \"periods\": 12}]}"
]}`

// mockDependencies runs the real pipeline and fakes the job side.
type mockDependencies struct {
	pipeline  *pipeline.Pipeline
	submitted []model.Document
	submitErr error
	duplicate bool
	jobs      map[string]model.Result
	review    []model.Result
	lastLimit int
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{pipeline: pipeline.New(), jobs: map[string]model.Result{}}
}

func (m *mockDependencies) Process(ctx context.Context, doc model.Document) (pipeline.Output, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Output{}, err
	}
	return m.pipeline.Run(doc.Runs), nil
}

func (m *mockDependencies) Submit(_ context.Context, doc model.Document) (service.Submission, error) {
	if m.submitErr != nil {
		return service.Submission{}, m.submitErr
	}
	m.submitted = append(m.submitted, doc)
	return service.Submission{JobID: "job-1", Status: model.StatusQueued, Duplicate: m.duplicate}, nil
}

func (m *mockDependencies) Job(_ context.Context, id string) (model.Result, error) {
	res, ok := m.jobs[id]
	if !ok {
		return model.Result{}, repository.ErrNotFound
	}
	return res, nil
}

func (m *mockDependencies) ReviewQueue(_ context.Context, n int) ([]model.Result, error) {
	m.lastLimit = n
	if n < len(m.review) {
		return m.review[:n], nil
	}
	return m.review, nil
}

func (m *mockDependencies) PolicyVersion() string { return pipeline.DefaultPolicyVersion }

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, opts...).
		Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(newMockDependencies())

		Convey("Then the health endpoint reports the policy version", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, pipeline.DefaultPolicyVersion)
		})

		Convey("Then the stats endpoint serves JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then the metrics endpoint serves the custom registry", func() {
			do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "revsched_")
		})

		Convey("Then wrong methods are not found", func() {
			So(do(mux, http.MethodGet, "/v1/normalize", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/v1/review", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestNormalizeHandler(t *testing.T) {
	Convey("Given a normalize endpoint", t, func() {
		mux := newMux(newMockDependencies(), api.WithMaxRequestBytes(2048))

		Convey("When two runs are posted", func() {
			w := do(mux, http.MethodPost, "/v1/normalize", twoRuns)

			Convey("Then Garage records are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["document_id"], ShouldEqual, "doc-1")
				So(body["garage"], ShouldHaveLength, 1)
				So(body["should_retry"], ShouldEqual, false)
				So(body, ShouldNotContainKey, "schedules")
			})
		})

		Convey("When the full output is requested", func() {
			full := strings.Replace(twoRuns, `"document_id": "doc-1",`, `"document_id": "doc-1", "full": true,`, 1)
			w := do(mux, http.MethodPost, "/v1/normalize", full)

			Convey("Then schedules and agreement are included", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					DocumentID string             `json:"document_id"`
					Schedules  []map[string]any   `json:"schedules"`
					Agreement  []agreement.Result `json:"agreement"`
					Summary    *agreement.Summary `json:"agreement_summary"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.DocumentID, ShouldEqual, "doc-1")
				So(body.Schedules, ShouldHaveLength, 1)
				So(body.Agreement, ShouldHaveLength, 1)
				So(body.Summary, ShouldNotBeNil)
			})
		})

		Convey("When a run is not an object", func() {
			w := do(mux, http.MethodPost, "/v1/normalize", `{"runs": [[1, 2]]}`)

			Convey("Then it should return bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "not a JSON object")
			})
		})

		Convey("When runs are missing", func() {
			w := do(mux, http.MethodPost, "/v1/normalize", `{"runs": []}`)

			Convey("Then it should return bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is invalid JSON", func() {
			w := do(mux, http.MethodPost, "/v1/normalize", `{"runs": `)

			Convey("Then it should return bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a string run holds no JSON", func() {
			w := do(mux, http.MethodPost, "/v1/normalize", `{"runs": ["the model refused"]}`)

			Convey("Then a retry is recommended instead of an error", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"should_retry":true`)
			})
		})

		Convey("When the body exceeds the limit", func() {
			w := do(mux, http.MethodPost, "/v1/normalize", `{"runs": ["`+strings.Repeat("x", 4096)+`"]}`)

			Convey("Then it should return entity too large", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})
	})
}

func TestJobsHandler(t *testing.T) {
	Convey("Given a jobs endpoint", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When a document is submitted", func() {
			w := do(mux, http.MethodPost, "/v1/jobs", twoRuns)

			Convey("Then it should be accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"job_id":"job-1"`)
				So(deps.submitted, ShouldHaveLength, 1)
				So(deps.submitted[0].ID, ShouldEqual, "doc-1")
				So(deps.submitted[0].Runs, ShouldHaveLength, 2)
			})
		})

		Convey("When a duplicate document is submitted", func() {
			deps.duplicate = true
			w := do(mux, http.MethodPost, "/v1/jobs", twoRuns)

			Convey("Then it should return OK with the duplicate flag", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrQueueFull
			w := do(mux, http.MethodPost, "/v1/jobs", twoRuns)

			Convey("Then it should return too many requests", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Body.String(), ShouldContainSubstring, "backpressure")
			})
		})

		Convey("When the service is not started", func() {
			deps.submitErr = service.ErrNotStarted
			w := do(mux, http.MethodPost, "/v1/jobs", twoRuns)

			Convey("Then it should return service unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When a known job is fetched", func() {
			deps.jobs["job-1"] = model.Result{JobID: "job-1", Status: model.StatusDone}
			w := do(mux, http.MethodGet, "/v1/jobs/job-1", "")

			Convey("Then the result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"done"`)
			})
		})

		Convey("When an unknown job is fetched", func() {
			w := do(mux, http.MethodGet, "/v1/jobs/nope", "")

			Convey("Then it should return not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the job path is malformed", func() {
			So(do(mux, http.MethodGet, "/v1/jobs/", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/v1/jobs/a/b", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestReviewHandler(t *testing.T) {
	Convey("Given a review endpoint", t, func() {
		deps := newMockDependencies()
		out := pipeline.Output{Summary: &agreement.Summary{MeanConfidence: 0.4, Flagged: 2}, Issues: []string{"x"}}
		deps.review = []model.Result{
			{JobID: "low", DocumentID: "d1", Status: model.StatusDone, Output: &out},
			{JobID: "high", Status: model.StatusDone, Output: &pipeline.Output{}},
		}
		mux := newMux(deps, api.WithMaxReviewLimit(5))

		Convey("When no limit is given", func() {
			w := do(mux, http.MethodGet, "/v1/review", "")

			Convey("Then the default limit is capped by the maximum", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 5)
			})
		})

		Convey("When a limit is given", func() {
			w := do(mux, http.MethodGet, "/v1/review?limit=1", "")

			Convey("Then entries are summarized", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0]["job_id"], ShouldEqual, "low")
				So(entries[0]["mean_confidence"], ShouldEqual, 0.4)
				So(entries[0]["flagged"], ShouldEqual, 2.0)
				So(entries[0]["issues"], ShouldEqual, 1.0)
			})
		})

		Convey("When the limit is invalid", func() {
			So(do(mux, http.MethodGet, "/v1/review?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/v1/review?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit exceeds the maximum", func() {
			w := do(mux, http.MethodGet, "/v1/review?limit=6", "")

			Convey("Then it should return bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
			})
		})
	})
}

func TestServerWithService(t *testing.T) {
	Convey("Given an API server over a started service", t, func() {
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(16))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)

		Convey("When a job is submitted and polled", func() {
			w := do(mux, http.MethodPost, "/v1/jobs", twoRuns)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			var sub service.Submission
			So(json.Unmarshal(w.Body.Bytes(), &sub), ShouldBeNil)

			var res model.Result
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				got := do(mux, http.MethodGet, "/v1/jobs/"+sub.JobID, "")
				So(got.Code, ShouldEqual, http.StatusOK)
				So(json.Unmarshal(got.Body.Bytes(), &res), ShouldBeNil)
				if res.Status != model.StatusQueued {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}

			Convey("Then the job finishes and shows up for review", func() {
				So(res.Status, ShouldEqual, model.StatusDone)
				So(res.Output.Garage, ShouldHaveLength, 1)

				review := do(mux, http.MethodGet, "/v1/review?limit=5", "")
				So(review.Code, ShouldEqual, http.StatusOK)
				So(review.Body.String(), ShouldContainSubstring, sub.JobID)

				again := do(mux, http.MethodPost, "/v1/jobs", twoRuns)
				So(again.Code, ShouldEqual, http.StatusOK)
				So(again.Body.String(), ShouldContainSubstring, sub.JobID)
			})
		})
	})
}
