package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/loykin/jobsched/internal/clock"
	"github.com/loykin/jobsched/internal/execution"
)

func TestMetrics_RegisterIsIdempotent(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Register(reg))
}

func TestMetrics_RecordsJobOutcomes(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	clk := clock.NewManual(time.Unix(0, 0))
	ok := execution.New("ex-1", "def-1", "Def One", context.Background(), clk.Now())
	m.JobStarted(ok)
	ok.Run(clk, func(ctx context.Context) error { return nil })
	m.JobCompleted(ok)

	failed := execution.New("ex-2", "def-1", "Def One", context.Background(), clk.Now())
	m.JobStarted(failed)
	failed.Run(clk, func(ctx context.Context) error { return errors.New("boom") })
	m.JobCompleted(failed)

	mf, err := reg.Gather()
	require.NoError(t, err)

	var completions *dto.MetricFamily
	for _, f := range mf {
		if f.GetName() == "jobsched_job_completions_total" {
			completions = f
		}
	}
	require.NotNil(t, completions)
	require.Len(t, completions.Metric, 2)
}

func TestMetrics_DefinitionCountGauge(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.DefinitionAdded(DefinitionInfo{ID: "d1"})
	m.DefinitionAdded(DefinitionInfo{ID: "d2"})
	m.DefinitionRemoved(DefinitionInfo{ID: "d1"})

	mf, err := reg.Gather()
	require.NoError(t, err)

	var gauge *dto.MetricFamily
	for _, f := range mf {
		if f.GetName() == "jobsched_scheduler_definitions" {
			gauge = f
		}
	}
	require.NotNil(t, gauge)
	require.Equal(t, float64(1), gauge.Metric[0].GetGauge().GetValue())
}
