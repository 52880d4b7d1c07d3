package app

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/thushan/chillm/internal/version"
	"github.com/thushan/chillm/pkg/nerdstats"
)

type versionInfo struct {
	Build   map[string]string `json:"build,omitempty"`
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Commit  string            `json:"commit"`
	Date    string            `json:"date"`
	Go      string            `json:"go"`
}

func (a *App) versionCommand() *cobra.Command {
	var extended bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Name:    version.Name,
				Version: version.Version,
				Commit:  version.Commit,
				Date:    version.Date,
				Go:      runtime.Version(),
			}
			if extended {
				info.Build = nerdstats.Snapshot(a.startTime).BuildInfoSummary()
			}
			if a.flags.jsonOut {
				return a.printJSON(info)
			}

			version.PrintVersionInfo(extended, a.stdout)
			for _, k := range sortedKeys(info.Build) {
				fmt.Fprintf(a.stdout, "%8s: %s\n", k, info.Build[k])
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&extended, "extended", "e", false, "include build details")
	return cmd
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
