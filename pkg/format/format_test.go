package format

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		want string
		in   uint64
	}{
		{"512 B", 512},
		{"1.00 KB", 1024},
		{"291.00 MB", 291 * 1024 * 1024},
		{"2.50 GB", 2560 * 1024 * 1024},
	}
	for _, tt := range tests {
		if got := Bytes(tt.in); got != tt.want {
			t.Errorf("Bytes(%d) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestMegabytes(t *testing.T) {
	tests := map[int]string{
		0:    "-",
		291:  "291 MB",
		1024: "1.0 GB",
		2355: "2.3 GB",
	}
	for in, want := range tests {
		if got := Megabytes(in); got != want {
			t.Errorf("Megabytes(%d) = %q, expected %q", in, got, want)
		}
	}
}

func TestLatency(t *testing.T) {
	tests := map[int64]string{
		0:    "0ms",
		7:    "7ms",
		250:  "250ms",
		1500: "1.5s",
	}
	for in, want := range tests {
		if got := Latency(in); got != want {
			t.Errorf("Latency(%d) = %q, expected %q", in, got, want)
		}
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(90 * time.Second); got != "1m30s" {
		t.Errorf("Duration(90s) = %q, expected 1m30s", got)
	}
	if got := Duration(2*time.Hour + 5*time.Second); got != "2h0m5s" {
		t.Errorf("Duration(2h5s) = %q, expected 2h0m5s", got)
	}
}
