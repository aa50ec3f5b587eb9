package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersExported(t *testing.T) {
	m := New()
	m.ScheduleTransitions.WithLabelValues("completed").Inc()
	m.CodeChecks.WithLabelValues("invalid").Add(2)

	if got := testutil.ToFloat64(m.CodeChecks.WithLabelValues("invalid")); got != 2 {
		t.Errorf("otp checks = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `kindnest_schedule_transitions_total{to="completed"} 1`) {
		t.Errorf("transition counter missing from output:\n%s", body)
	}
}
