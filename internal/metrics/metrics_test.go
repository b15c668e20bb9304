package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/lists/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/lists/{name}", "418"))
	for _, name := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lists/"+name, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/lists/{name}", "418"))
	if after-before != 3 {
		t.Errorf("counted %v requests, want 3", after-before)
	}
}

func TestSearchRequests_Counter(t *testing.T) {
	before := testutil.ToFloat64(SearchRequests.WithLabelValues(OutcomeStale))
	SearchRequests.WithLabelValues(OutcomeStale).Inc()
	if got := testutil.ToFloat64(SearchRequests.WithLabelValues(OutcomeStale)); got != before+1 {
		t.Errorf("stale = %v", got)
	}
}
