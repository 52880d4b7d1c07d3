package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thushan/chillm/internal/config"
	"github.com/thushan/chillm/internal/core/constants"
)

const maskedSecret = "********"

func (a *App) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the layered configuration",
	}
	cmd.AddCommand(
		a.configShowCommand(),
		a.configExplainCommand(),
		a.configSetCommand(),
		a.configPathCommand(),
	)
	return cmd
}

func (a *App) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _, err := a.resolve()
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				cfg := res.Config
				cfg.Provider.APIKey = mask(cfg.Provider.APIKey)
				for i := range cfg.ProviderProfiles {
					cfg.ProviderProfiles[i].APIKey = mask(cfg.ProviderProfiles[i].APIKey)
				}
				return a.printJSON(cfg)
			}

			out, err := yaml.Marshal(maskValues(res.Values))
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(out)
			return err
		},
	}
}

func (a *App) configExplainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Show every configuration layer and where the default model comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _, err := a.resolve()
			if err != nil {
				return err
			}
			ex := res.Explain()
			if a.flags.jsonOut {
				return a.printJSON(ex)
			}

			fmt.Fprintf(a.stdout, "model:  %s (%s, from %s)\n", ex.Model, ex.Reason, ex.Source)
			if ex.SourcePath != "" {
				fmt.Fprintf(a.stdout, "file:   %s\n", ex.SourcePath)
			}
			fmt.Fprintf(a.stdout, "mode:   %s, allow_global=%t\n", ex.Mode, ex.AllowGlobal)
			if ex.ProviderType != "" {
				fmt.Fprintf(a.stdout, "provider: %s\n", ex.ProviderType)
			}
			if len(ex.Profiles) > 0 {
				fmt.Fprintf(a.stdout, "profiles: %s\n", strings.Join(ex.Profiles, ", "))
			}

			table := [][]string{{"LAYER", "SOURCE", "STATUS", "DEFAULT MODEL", "PATH", "DETAIL"}}
			for _, l := range ex.Layers {
				table = append(table, []string{l.Name, l.Source, l.Status, yesNo(l.Defines), l.Path, l.Detail})
			}
			return a.printTable(table)
		},
	}
}

func (a *App) configSetCommand() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a dotted key such as provider.host into a configuration file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogue, err := a.catalogue()
			if err != nil {
				return err
			}
			scope := config.ScopeLocal
			if global {
				scope = config.ScopeGlobal
			}

			opts := a.configOptions(catalogue)
			key := strings.ToLower(strings.TrimSpace(args[0]))
			var path string
			if key == constants.KeyDefaultModel {
				path, err = config.SetDefaultModel(opts, scope, args[1], catalogue)
			} else {
				path, err = config.Set(opts, scope, key, config.ParseValue(args[1]))
			}
			if err != nil {
				return err
			}
			a.log.Info("Configuration updated", "key", key, "path", path)
			fmt.Fprintf(a.stdout, "%s written to %s\n", key, path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&global, "global", "g", false, "write the per-user file instead of the working directory")
	return cmd
}

func (a *App) configPathCommand() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the file config set would write to",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogue, err := a.catalogue()
			if err != nil {
				return err
			}
			scope := config.ScopeLocal
			if global {
				scope = config.ScopeGlobal
			}
			fmt.Fprintln(a.stdout, config.TargetPath(a.configOptions(catalogue), scope))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&global, "global", "g", false, "show the per-user file")
	return cmd
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return maskedSecret
}

// maskValues copies the provider blocks of values with api_key hidden.
func maskValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	if p, ok := values[constants.KeyProvider].(map[string]any); ok {
		out[constants.KeyProvider] = maskBlock(p)
	}
	if profiles, ok := values[constants.KeyProviderProfiles].([]any); ok {
		masked := make([]any, len(profiles))
		for i, p := range profiles {
			if block, ok := p.(map[string]any); ok {
				masked[i] = maskBlock(block)
				continue
			}
			masked[i] = p
		}
		out[constants.KeyProviderProfiles] = masked
	}
	return out
}

func maskBlock(block map[string]any) map[string]any {
	out := make(map[string]any, len(block))
	for k, v := range block {
		out[k] = v
	}
	if key, ok := out["api_key"].(string); ok {
		out["api_key"] = mask(key)
	}
	return out
}
