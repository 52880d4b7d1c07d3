package nerdstats

import (
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	stats := Snapshot(time.Now().Add(-time.Second))

	assert.Greater(t, stats.HeapAlloc, uint64(0))
	assert.GreaterOrEqual(t, stats.Uptime, time.Second)
	assert.Equal(t, runtime.Version(), stats.GoVersion)
	assert.Positive(t, stats.NumGoroutines)

	args := stats.LogArgs()
	assert.Equal(t, 0, len(args)%2, "key/value pairs")
	assert.Equal(t, "heap_alloc", args[0])
}

func TestCalculateAverageGCPause(t *testing.T) {
	assert.Equal(t, "N/A", CalculateAverageGCPause(&NerdStats{}))
	assert.NotEqual(t, "N/A", CalculateAverageGCPause(&NerdStats{NumGC: 2, TotalGCTime: 4 * time.Millisecond}))
}

func TestBuildInfoSummary(t *testing.T) {
	assert.Empty(t, (&NerdStats{}).BuildInfoSummary())

	ns := &NerdStats{
		GoVersion: "go1.24",
		BuildInfo: &debug.BuildInfo{
			Path: "github.com/thushan/chillm",
			Settings: []debug.BuildSetting{
				{Key: "GOOS", Value: "linux"},
				{Key: "-ldflags", Value: "-s -w"},
			},
		},
	}
	summary := ns.BuildInfoSummary()
	assert.Equal(t, "linux", summary["GOOS"])
	assert.Equal(t, "github.com/thushan/chillm", summary["path"])
	assert.NotContains(t, summary, "-ldflags")
}
