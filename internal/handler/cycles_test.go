package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-herald/internal/domain"
	"crypto-herald/internal/job"
	"crypto-herald/internal/ledger"
	"crypto-herald/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type stubPipeline struct {
	calls []string
}

func (s *stubPipeline) RunGlobalUpdate(ctx context.Context, trigger pipeline.Trigger) pipeline.CycleResult {
	s.calls = append(s.calls, "global:"+string(trigger))
	return pipeline.CycleResult{Kind: "global_update", Trigger: trigger, Published: 7}
}

func (s *stubPipeline) RunCategory(ctx context.Context, name string) (pipeline.CycleResult, error) {
	if name != "news" && name != "setup" {
		return pipeline.CycleResult{}, fmt.Errorf("%w: %q", pipeline.ErrUnknownCategory, name)
	}
	s.calls = append(s.calls, name)
	return pipeline.CycleResult{Kind: name, Published: 1, Errors: []string{"narrative: timeout"}}, nil
}

func (s *stubPipeline) Status() pipeline.Status {
	return pipeline.Status{
		Persona:     "grok",
		StartupDone: true,
		Ledger:      map[domain.Pool]ledger.PoolStats{domain.PoolDigest: {Size: 3}},
	}
}

type stubTasks []job.TaskStatus

func (s stubTasks) Tasks() []job.TaskStatus { return s }

func newRouter(h *Handler, key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r, key, promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	return r
}

func keyed(path string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("X-API-Key", "secret")
	return req
}

func TestTriggerCycle(t *testing.T) {
	p := &stubPipeline{}
	r := newRouter(newTestHandler(p, nil), "secret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, keyed("/api/cycles/global"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res pipeline.CycleResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Trigger != pipeline.TriggerManual || res.Published != 7 {
		t.Fatalf("unexpected result %+v", res)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, keyed("/api/cycles/News"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("cycle errors should be reported, got %+v", res)
	}
	if len(p.calls) != 2 || p.calls[0] != "global:manual" || p.calls[1] != "news" {
		t.Fatalf("unexpected calls %v", p.calls)
	}
}

func TestTriggerCycleUnknownKind(t *testing.T) {
	r := newRouter(newTestHandler(&stubPipeline{}, nil), "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, keyed("/api/cycles/lottery"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTriggerCycleDisabledWithoutKey(t *testing.T) {
	p := &stubPipeline{}
	r := newRouter(newTestHandler(p, nil), "")

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/cycles/global", nil),
		keyed("/api/cycles/global"),
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403 without a configured key, got %d", w.Code)
		}
	}
	if len(p.calls) != 0 {
		t.Fatalf("no cycle should run, got %v", p.calls)
	}
}

func TestTriggerCycleRequiresKey(t *testing.T) {
	p := &stubPipeline{}
	r := newRouter(newTestHandler(p, nil), "secret")

	cases := []struct {
		header string
		value  string
		want   int
	}{
		{"", "", http.StatusUnauthorized},
		{"X-API-Key", "wrong", http.StatusForbidden},
		{"Authorization", "Basic c2VjcmV0", http.StatusUnauthorized},
		{"Authorization", "Bearer wrong", http.StatusForbidden},
		{"X-API-Key", "secret", http.StatusOK},
		{"Authorization", "bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/cycles/setup", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %q: expected %d, got %d", tc.header, tc.value, tc.want, w.Code)
		}
	}
	if len(p.calls) != 2 {
		t.Fatalf("only the authorized requests should run, got %v", p.calls)
	}
}

func TestStatus(t *testing.T) {
	next := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)
	tasks := stubTasks{{Name: "global_update", Cadence: "daily at 08:00,12:00,18:00 CET", State: job.StateRunning, Next: next, Runs: 2}}
	r := newRouter(newTestHandler(&stubPipeline{}, tasks), "secret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status should not need a key, got %d", w.Code)
	}
	var body statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Pipeline.Persona != "grok" || !body.Pipeline.StartupDone || body.Pipeline.Ledger[domain.PoolDigest].Size != 3 {
		t.Fatalf("unexpected pipeline status %+v", body.Pipeline)
	}
	if len(body.Tasks) != 1 || !body.Tasks[0].Next.Equal(next) {
		t.Fatalf("unexpected tasks %+v", body.Tasks)
	}
}

func TestMetricsRoute(t *testing.T) {
	r := newRouter(newTestHandler(&stubPipeline{}, nil), "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
