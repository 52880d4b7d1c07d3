package nerdstats

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/thushan/chillm/pkg/format"
)

/*
	NerdStats is a small snapshot of Go runtime statistics, logged at debug level
	when a command finishes. Loading a local model shows up clearly in HeapSys.

	See: https://pkg.go.dev/runtime#MemStats for the fields.

	v1: https://github.com/thushan/smash/blob/main/pkg/nerdstats/nerdstats.go
*/

type NerdStats struct {
	HeapAlloc  uint64
	HeapSys    uint64
	TotalAlloc uint64
	Sys        uint64

	NumGC       uint32
	TotalGCTime time.Duration

	NumGoroutines int
	NumCgoCall    int64

	GoVersion string
	Uptime    time.Duration

	BuildInfo *debug.BuildInfo
}

func Snapshot(startTime time.Time) *NerdStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &NerdStats{
		HeapAlloc:     m.HeapAlloc,
		HeapSys:       m.HeapSys,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		NumGC:         m.NumGC,
		TotalGCTime:   time.Duration(m.PauseTotalNs),
		NumGoroutines: runtime.NumGoroutine(),
		NumCgoCall:    runtime.NumCgoCall(),
		GoVersion:     runtime.Version(),
		Uptime:        time.Since(startTime),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		stats.BuildInfo = info
	}
	return stats
}

// LogArgs renders the snapshot as slog key/value pairs.
func (ns *NerdStats) LogArgs() []any {
	return []any{
		"heap_alloc", format.Bytes(ns.HeapAlloc),
		"heap_sys", format.Bytes(ns.HeapSys),
		"total_alloc", format.Bytes(ns.TotalAlloc),
		"sys", format.Bytes(ns.Sys),
		"num_gc", ns.NumGC,
		"avg_gc_pause", CalculateAverageGCPause(ns),
		"goroutines", ns.NumGoroutines,
		"cgo_calls", ns.NumCgoCall,
		"uptime", format.Duration(ns.Uptime),
	}
}

// BuildInfoSummary picks the build settings worth printing in version output.
func (ns *NerdStats) BuildInfoSummary() map[string]string {
	summary := make(map[string]string)
	if ns.BuildInfo == nil {
		return summary
	}

	summary["go"] = ns.GoVersion
	summary["path"] = ns.BuildInfo.Path
	if v := ns.BuildInfo.Main.Version; v != "" {
		summary["main_version"] = v
	}
	for _, setting := range ns.BuildInfo.Settings {
		switch setting.Key {
		case "CGO_ENABLED", "GOARCH", "GOOS", "vcs.revision", "vcs.time", "-tags":
			summary[setting.Key] = setting.Value
		}
	}
	return summary
}

func CalculateAverageGCPause(stats *NerdStats) string {
	if stats.NumGC == 0 {
		return "N/A"
	}
	return format.Duration(stats.TotalGCTime / time.Duration(stats.NumGC))
}
