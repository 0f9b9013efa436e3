package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheusExposesPlannerCollectors(t *testing.T) {
	SessionsTotal.WithLabelValues("success").Inc()
	ToolDuration.WithLabelValues("web_search").Observe(0.2)
	Iterations.Observe(3)

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))

	out := buf.String()
	assert.Contains(t, out, `planner_sessions_total{outcome="success"}`)
	assert.Contains(t, out, `planner_tool_duration_seconds_bucket{tool="web_search"`)
	assert.Contains(t, out, "planner_iterations_count")
}
