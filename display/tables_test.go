package display

import (
	"bytes"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dropwatch/listing"
	"github.com/teranos/dropwatch/pipeline"
)

func TestRenderHistory(t *testing.T) {
	pterm.DisableColor()
	t.Cleanup(pterm.EnableColor)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []pipeline.Outcome{
		{
			TargetKind: "product", Target: "https://shop.example/p/1",
			Stage: pipeline.StageDone, StartedAt: start, EndedAt: start.Add(2 * time.Second),
		},
		{
			TargetKind: "listing", Target: "https://shop.example/store",
			Stage: pipeline.StageFailed, FailedStage: pipeline.StageMonitoring, Reason: pipeline.ReasonTimeout,
			StartedAt: start, EndedAt: start.Add(time.Minute),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderHistory(&buf, runs))
	out := buf.String()
	assert.Contains(t, out, "https://shop.example/p/1")
	assert.Contains(t, out, "failed(monitoring)")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "10")
}

func TestRenderHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHistory(&buf, nil))
	assert.Equal(t, "No runs recorded yet\n", buf.String())
}

func TestRenderItems(t *testing.T) {
	pterm.DisableColor()
	t.Cleanup(pterm.EnableColor)

	var buf bytes.Buffer
	require.NoError(t, RenderItems(&buf, []listing.Item{{ID: "777", Title: "Limited figure", URL: "https://shop.example/i/777"}}))
	assert.Contains(t, buf.String(), "Limited figure")
	assert.Contains(t, buf.String(), "777")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
