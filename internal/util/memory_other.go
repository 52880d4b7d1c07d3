//go:build !linux

package util

import "errors"

var ErrMemoryUnknown = errors.New("total memory detection not supported on this platform")

func TotalMemoryGB() (float64, error) {
	return 0, ErrMemoryUnknown
}
