package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilReceiverIsSafe(t *testing.T) {
	var m *JobMetrics
	m.ObserveDuration("sweep", time.Second)
	m.IncSuccess("sweep")
	m.IncFailure("sweep")
	m.IncIssued("late_submission")
}

func TestRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.ObserveDuration("lateness_sweep", 120*time.Millisecond)
	m.IncSuccess("lateness_sweep")
	m.IncIssued("late_submission")
	m.IncIssued("")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{"fines_job_duration_seconds", "fines_job_success", "fines_issued_total"} {
		if !names[want] {
			t.Fatalf("missing metric family %s", want)
		}
	}
}
