//go:build linux

package util

import (
	"golang.org/x/sys/unix"

	"github.com/thushan/chillm/pkg/container"
)

// TotalMemoryGB reports usable RAM in GiB: installed memory, or the cgroup
// limit when running under a smaller one.
func TotalMemoryGB() (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	if limit, ok := container.MemoryLimitBytes(); ok && limit < total {
		total = limit
	}
	return float64(total) / (1 << 30), nil
}
