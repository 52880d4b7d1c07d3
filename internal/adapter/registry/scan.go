package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/util"
)

// ScanGGUF lists *.gguf files directly inside each of dirs. Unreadable directories
// are reported in errs but do not stop the scan.
func ScanGGUF(dirs []string) (files []domain.LocalModelFile, errs []error) {
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		base, err := util.ExpandHome(strings.TrimSpace(dir))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if base == "" {
			continue
		}
		abs, err := filepath.Abs(base)
		if err != nil {
			errs = append(errs, fmt.Errorf("abs path %s: %w", base, err))
			continue
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			errs = append(errs, fmt.Errorf("read dir %s: %w", abs, err))
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
				continue
			}
			p := filepath.Join(abs, e.Name())
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			var size int64
			if info, err := e.Info(); err == nil {
				size = info.Size()
			}
			files = append(files, domain.LocalModelFile{ID: e.Name(), Path: p, Size: size})
		}
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, errs
}
