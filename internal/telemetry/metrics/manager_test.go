package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_RegistersDomainSeries(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()

	m.CounterEvaluations.WithLabelValues("squats").Inc()
	m.CounterFormIssues.WithLabelValues("squats", "knees", "moderate").Add(2)
	m.CounterRepetitions.WithLabelValues("squats").Inc()
	m.GaugeActiveSessions.Set(3)
	m.HistogramFormScore.WithLabelValues("squats").Observe(85)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterEvaluations.WithLabelValues("squats")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterFormIssues.WithLabelValues("squats", "knees", "moderate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GaugeActiveSessions))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		names[f.GetName()] = f
	}
	require.Contains(t, names, "formcheck_test_server_form_score")
	hist := names["formcheck_test_server_form_score"].GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), hist.GetSampleCount())
	assert.Equal(t, 85.0, hist.GetSampleSum())
	assert.Contains(t, names, "formcheck_test_server_repetitions")
	assert.Contains(t, names, "formcheck_test_server_active_sessions")
}

func TestNewManager_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewManager("formcheck", "a", prometheus.NewRegistry())
		NewManager("formcheck", "a", prometheus.NewRegistry())
	})
}

func TestSetupPrometheus(t *testing.T) {
	extra := prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_total", Help: "extra"})
	reg := SetupPrometheus(extra)
	extra.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "extra_total" {
			found = true
		}
	}
	assert.True(t, found)
}
