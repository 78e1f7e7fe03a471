package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fareflow/internal/modules/dispatch"
	"fareflow/internal/modules/forecast"
	"fareflow/internal/modules/pipeline"
	"fareflow/internal/modules/pricing"
)

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC)
	runs := []pipeline.Run{
		{ID: "run-2", TriggerSource: "scheduler", Status: pipeline.StatusPartial, StartedAt: started, DurationMs: 1500,
			Results: map[string]pipeline.PhaseResult{
				pipeline.PhaseImpact:   {Success: false},
				pipeline.PhaseAnalysis: {Success: false},
				pipeline.PhaseForecast: {Success: true},
			}},
		{ID: "run-1", TriggerSource: "api", Status: pipeline.StatusCompleted, StartedAt: started.Add(-time.Hour), DurationMs: 900},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "FAILED_PHASES")
	assert.Contains(t, lines[1], "analysis,impact")
	assert.Contains(t, lines[1], "1.5s")
	assert.True(t, strings.HasSuffix(lines[2], "-"))
}

func TestFormatQueueStatus(t *testing.T) {
	var buf bytes.Buffer
	formatQueueStatus(&buf, dispatch.Status{P0: 2, P1: 5, P2: 1, Total: 8})
	out := buf.String()
	assert.Contains(t, out, "P0")
	assert.Regexp(t, `total\s+8`, out)
}

func TestFormatForecastSummary(t *testing.T) {
	var buf bytes.Buffer
	formatForecastSummary(&buf, &forecast.Output{
		Horizons:    []int{30, 60},
		RecordCount: 120,
		Summary: forecast.Summary{
			BaselineRevenue:  300,
			ProjectedRevenue: map[int]float64{30: 330, 60: 363},
			GrowthPct:        map[int]float64{30: 10, 60: 21},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "records: 120")
	assert.Regexp(t, `60d\s+363.00\s+21.00`, out)
}

func TestRootCommandTree(t *testing.T) {
	want := []string{"serve", "pipeline", "runs", "forecast", "seed", "queue", "rates"}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], name)
	}
}

func TestFormatRates(t *testing.T) {
	rates := pricing.DefaultRates()
	rates[pricing.ModelDynamicCustom] = pricing.Rate{BaseFare: 6, PerMile: 3, PerMinute: 0.5}

	var buf bytes.Buffer
	formatRates(&buf, rates)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "BASE FARE")
	assert.Contains(t, lines[1], "DYNAMIC_STANDARD")
	assert.Contains(t, lines[1], "4.00")
	assert.Contains(t, lines[2], "DYNAMIC_CUSTOM")
	assert.Contains(t, lines[2], "6.00")
	assert.NotContains(t, buf.String(), "FIXED")
}
