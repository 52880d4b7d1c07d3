package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thushan/chillm/internal/adapter/ledger"
	"github.com/thushan/chillm/internal/adapter/registry"
	"github.com/thushan/chillm/internal/adapter/selector"
	"github.com/thushan/chillm/internal/config"
	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/internal/util"
	"github.com/thushan/chillm/pkg/container"
	"github.com/thushan/chillm/pkg/format"
)

func (a *App) modelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List, recommend and pick catalogue models",
	}
	cmd.AddCommand(
		a.modelsListCommand(),
		a.modelsRecommendCommand(),
		a.modelsCurrentCommand(),
		a.modelsSetCommand(),
	)
	return cmd
}

type modelRow struct {
	domain.ModelDescriptor
	Downloaded bool `json:"downloaded"`
	Default    bool `json:"default"`
	Current    bool `json:"current"`
}

func (a *App) modelsListCommand() *cobra.Command {
	var (
		tags           []string
		match          string
		maxRAM         float64
		downloadedOnly bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogue models",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, catalogue, err := a.resolve()
			if err != nil {
				return err
			}
			downloaded := a.downloaded(cmd.Context(), res)
			current, _ := selector.Select(res, catalogue)

			var rows []modelRow
			for _, m := range catalogue.List(domain.ModelFilter{Pattern: match, Tags: tags, MaxRAMGB: maxRAM}) {
				row := modelRow{
					ModelDescriptor: m,
					Downloaded:      downloaded[m.ID] || fileExists(filepath.Join(res.CacheDir, m.Filename)),
					Default:         m.ID == catalogue.DefaultID(),
					Current:         m.ID == current.Model,
				}
				if downloadedOnly && !row.Downloaded {
					continue
				}
				rows = append(rows, row)
			}

			if a.flags.jsonOut {
				return a.printJSON(rows)
			}
			table := [][]string{{"ID", "NAME", "SIZE", "FILE", "RAM", "CONTEXT", "DOWNLOADED", "CURRENT"}}
			for _, r := range rows {
				table = append(table, []string{
					r.ID,
					r.Name,
					r.Size,
					format.Megabytes(r.FileSizeMB),
					format.RAM(r.RecommendedRAMGB),
					strconv.Itoa(r.ContextWindow),
					yesNo(r.Downloaded),
					yesNo(r.Current),
				})
			}
			return a.printTable(table)
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "only models carrying any of these catalogue tags")
	cmd.Flags().StringVar(&match, "match", "", "only model ids matching this glob, e.g. 'qwen3-*'")
	cmd.Flags().Float64Var(&maxRAM, "max-ram", 0, "only models needing at most this many GB of RAM")
	cmd.Flags().BoolVar(&downloadedOnly, "downloaded", false, "only models already in the cache")
	return cmd
}

// downloaded reads the ledger without creating it; a missing database falls back
// to the downloaded_models list from configuration.
func (a *App) downloaded(ctx context.Context, res *config.Resolved) map[string]bool {
	seen := make(map[string]bool)
	for _, id := range res.Config.DownloadedModels {
		seen[id] = true
	}
	path := filepath.Join(res.CacheDir, constants.LedgerFileName)
	if !fileExists(path) {
		return seen
	}
	l, err := ledger.Open(path, res.Config.DownloadedModels)
	if err != nil {
		a.log.Warn("Download ledger unavailable", "path", path, "error", err)
		return seen
	}
	defer l.Close()

	ids, err := l.List(ctx)
	if err != nil {
		a.log.Warn("Failed to read download ledger", "error", err)
		return seen
	}
	for _, id := range ids {
		seen[id] = true
	}
	return seen
}

type recommendation struct {
	Model         domain.ModelDescriptor `json:"model"`
	RAMGB         float64                `json:"ram_gb"`
	Budget        float64                `json:"budget_gb"`
	Containerised bool                   `json:"containerised,omitempty"`
}

func (a *App) modelsRecommendCommand() *cobra.Command {
	var ram float64
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend a model for this machine's memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogue, err := a.catalogue()
			if err != nil {
				return err
			}
			detected := ram <= 0
			if detected {
				if ram, err = util.TotalMemoryGB(); err != nil {
					return fmt.Errorf("cannot detect memory, pass --ram: %w", err)
				}
			}
			model, err := catalogue.Recommend(ram)
			if err != nil {
				return err
			}

			rec := recommendation{Model: model, RAMGB: ram, Budget: ram * registry.RecommendSafetyMargin}
			if detected && container.IsContainerised() {
				rec.Containerised = true
				a.log.Info("Running in a container, sized against the container memory limit", "ram", format.RAM(ram))
			}
			if a.flags.jsonOut {
				return a.printJSON(rec)
			}
			fmt.Fprintf(a.stdout, "%s (%s, %s) for %s of RAM\n", model.ID, model.Name, format.Megabytes(model.FileSizeMB), format.RAM(ram))
			if model.Description != "" {
				fmt.Fprintln(a.stdout, model.Description)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&ram, "ram", 0, "available RAM in GB (detected when unset)")
	return cmd
}

func (a *App) modelsCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show which model a new LLM would run and why",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, catalogue, err := a.resolve()
			if err != nil {
				return err
			}
			decision, err := selector.Select(res, catalogue)
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return a.printJSON(decision)
			}

			table := [][]string{
				{"FIELD", "VALUE"},
				{"model", decision.Model},
				{"reason", string(decision.Reason)},
				{"source", string(decision.Source)},
			}
			if decision.SourcePath != "" {
				table = append(table, []string{"path", decision.SourcePath})
			}
			if t := res.Config.Provider.Type; t.IsRemote() {
				table = append(table, []string{"provider", string(t) + " " + res.Config.Provider.Target()})
			}
			if res.HasProfiles() {
				table = append(table, []string{"profiles", strconv.Itoa(len(res.Config.ProviderProfiles))})
			}
			return a.printTable(table)
		},
	}
}

func (a *App) modelsSetCommand() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "set <model-id>",
		Short: "Set default_model after checking it exists in the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogue, err := a.catalogue()
			if err != nil {
				return err
			}
			scope := config.ScopeLocal
			if global {
				scope = config.ScopeGlobal
			}
			path, err := config.SetDefaultModel(a.configOptions(catalogue), scope, args[0], catalogue)
			if err != nil {
				return err
			}
			a.log.InfoWithModel("Default model set", args[0], "path", path)
			if a.flags.jsonOut {
				return a.printJSON(map[string]string{"default_model": args[0], "path": path})
			}
			fmt.Fprintf(a.stdout, "default_model = %s (%s)\n", args[0], path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&global, "global", "g", false, "write the per-user file instead of the working directory")
	return cmd
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}
