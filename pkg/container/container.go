package container

import (
	"os"
	"strconv"
	"strings"
)

const (
	cgroupV2Limit = "/sys/fs/cgroup/memory.max"
	cgroupV1Limit = "/sys/fs/cgroup/memory/memory.limit_in_bytes"

	// cgroup v1 reports "no limit" as a huge page-aligned number
	unlimitedV1 = 1 << 60
)

// IsContainerised returns true if the current process is likely running inside a container.
// it checks for /.dockerenv, container-related cgroup entries and Kubernetes environment variables.
func IsContainerised() bool {
	return hasDockerEnvFile() || isInContainerCGroup() || isInKubernetesPod()
}

// MemoryLimitBytes is the cgroup memory limit for this process, if one is set.
// Sysinfo reports the host's RAM inside a container, so callers sizing models
// should prefer this when it is smaller.
func MemoryLimitBytes() (uint64, bool) {
	return memoryLimitFrom(cgroupV2Limit, cgroupV1Limit)
}

func memoryLimitFrom(paths ...string) (uint64, bool) {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(string(data))
		if raw == "" || raw == "max" {
			return 0, false
		}
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || limit == 0 || limit >= unlimitedV1 {
			return 0, false
		}
		return limit, true
	}
	return 0, false
}

func hasDockerEnvFile() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

func isInContainerCGroup() bool {
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "docker") ||
		strings.Contains(content, "containerd") ||
		strings.Contains(content, "kubepods")
}

func isInKubernetesPod() bool {
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}
