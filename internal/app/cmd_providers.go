package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thushan/chillm/internal/adapter/backend"
	"github.com/thushan/chillm/internal/config"
	"github.com/thushan/chillm/internal/core/domain"
	"github.com/thushan/chillm/pkg/format"
)

const defaultProbeTimeout = 15 * time.Second

var errProbeFailed = errors.New("one or more providers failed")

func (a *App) providersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Discover models on and health check remote providers",
	}
	cmd.AddCommand(a.providersDiscoverCommand(), a.providersTestCommand())
	return cmd
}

func (a *App) deps(res *config.Resolved) backend.Deps {
	return backend.Deps{Logger: a.log, GGUFPaths: res.Config.GGUFPaths}
}

func (a *App) providersDiscoverCommand() *cobra.Command {
	var override domain.ProviderSettings
	var providerType string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the models a provider offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _, err := a.resolve()
			if err != nil {
				return err
			}

			settings := res.Config.Provider
			if providerType != "" {
				t, ok := domain.ParseBackendType(providerType)
				if !ok {
					return fmt.Errorf("%w: %q", domain.ErrUnknownBackend, providerType)
				}
				if t != settings.Type {
					// a different type starts from a clean block
					settings = domain.ProviderSettings{Type: t}
				}
			}
			if override.Host != "" {
				settings.Host = override.Host
			}
			if override.Port > 0 {
				settings.Port = override.Port
			}
			if override.BaseURL != "" {
				settings.BaseURL = override.BaseURL
			}
			if override.APIKey != "" {
				settings.APIKey = override.APIKey
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultProbeTimeout)
			defer cancel()
			models, err := backend.Discover(ctx, settings, a.deps(res))
			if err != nil {
				return err
			}
			a.log.InfoWithCount("Discovered models", len(models), "provider", string(settings.Type))

			if a.flags.jsonOut {
				return a.printJSON(map[string]any{"provider": settings.Type, "models": models})
			}
			for _, m := range models {
				fmt.Fprintln(a.stdout, m)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&providerType, "type", "", "provider type (defaults to the configured provider)")
	cmd.Flags().StringVar(&override.Host, "host", "", "provider host or URL")
	cmd.Flags().IntVar(&override.Port, "port", 0, "provider port")
	cmd.Flags().StringVar(&override.BaseURL, "base-url", "", "full base URL, overrides host and port")
	cmd.Flags().StringVar(&override.APIKey, "api-key", "", "API key for hosted providers")
	return cmd
}

type probeRow struct {
	backend.ProbeResult
	Name   string             `json:"name"`
	Type   domain.BackendType `json:"type"`
	Target string             `json:"target"`
}

func (a *App) providersTestCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Health check the configured provider or every provider profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _, err := a.resolve()
			if err != nil {
				return err
			}

			profiles := res.Config.ProviderProfiles
			if len(profiles) == 0 {
				if !res.Config.Provider.Type.IsRemote() {
					return errors.New("no remote provider configured; the local runtime is exercised by generate")
				}
				profiles = []domain.ProviderProfile{{ProviderSettings: res.Config.Provider, Name: "provider"}}
			}

			deps := a.deps(res)
			rows := make([]probeRow, 0, len(profiles))
			failed := false
			for _, p := range profiles {
				row := probeRow{Name: p.Name, Type: p.Type, Target: p.Target()}
				if p.Type == domain.BackendLocal || p.Type == "" {
					row.Status, row.Message = "skipped", "local profiles load a model; use generate"
					rows = append(rows, row)
					continue
				}

				b, err := backend.New(p.ProviderSettings, deps)
				if err != nil {
					a.log.ErrorWithBackend("Provider misconfigured", p.Name, "error", err)
					row.Status, row.Message = backend.ProbeStatusError, err.Error()
					failed = true
					rows = append(rows, row)
					continue
				}
				row.Target = b.Target()

				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				row.ProbeResult = backend.Probe(ctx, b)
				cancel()
				if !row.OK {
					failed = true
					a.log.WarnWithBackend("Provider check failed", p.Name, "status", row.Status)
				}
				rows = append(rows, row)
			}

			if a.flags.jsonOut {
				if err := a.printJSON(rows); err != nil {
					return err
				}
			} else {
				table := [][]string{{"NAME", "TYPE", "TARGET", "STATUS", "LATENCY", "MESSAGE"}}
				for _, r := range rows {
					table = append(table, []string{
						r.Name, string(r.Type), r.Target, r.Status, format.Latency(r.LatencyMS), r.Message,
					})
				}
				if err := a.printTable(table); err != nil {
					return err
				}
			}
			if failed {
				return errProbeFailed
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultProbeTimeout, "per-provider timeout")
	return cmd
}
