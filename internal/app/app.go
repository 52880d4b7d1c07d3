package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/thushan/chillm/internal/adapter/registry"
	"github.com/thushan/chillm/internal/config"
	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/env"
	"github.com/thushan/chillm/internal/logger"
	"github.com/thushan/chillm/internal/util"
	"github.com/thushan/chillm/internal/version"
	"github.com/thushan/chillm/pkg/chillm"
	"github.com/thushan/chillm/pkg/format"
	"github.com/thushan/chillm/pkg/nerdstats"
	"github.com/thushan/chillm/pkg/profiler"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultCLILogLevel = "warn"

type globalFlags struct {
	configPath string
	logLevel   string
	pprof      string
	tags       []string
	jsonOut    bool
}

// App is the chillm command line. Every command builds its own configuration
// view; nothing is shared between invocations.
type App struct {
	startTime  time.Time
	stdin      io.Reader
	stdout     io.Writer
	logOut     io.Writer // nil logs to stderr
	env        env.LookupFunc
	slog       *slog.Logger
	log        *logger.StyledLogger
	cleanup    func()
	profiler   *profiler.Server
	workDir    string
	cacheDir   string
	searchRoot string
	flags      globalFlags
}

func New(startTime time.Time) *App {
	return &App{
		startTime: startTime,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		env:       env.OS(),
	}
}

// Execute runs the command named by args and releases logging resources.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	defer a.close()
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           version.ShortName,
		Short:         "Run small local models or route to remote LLM providers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setupLogging(); err != nil {
				return err
			}
			if a.flags.pprof != "" {
				p, err := profiler.Start(a.flags.pprof, a.slog)
				if err != nil {
					return err
				}
				a.profiler = p
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Debug("Command finished", "command", cmd.CommandPath(), "took", format.Duration(time.Since(a.startTime)))
				a.log.Debug("Process stats", nerdstats.Snapshot(a.startTime).LogArgs()...)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "configuration file that outranks discovered ones")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "print machine readable JSON")
	pf.StringSliceVar(&a.flags.tags, "tags", nil, "route to provider profiles carrying any of these tags")
	pf.StringVar(&a.flags.pprof, "pprof", "", "serve pprof on this address while the command runs")
	_ = pf.MarkHidden("pprof")

	root.AddCommand(a.textCommands()...)
	root.AddCommand(
		a.modelsCommand(),
		a.configCommand(),
		a.providersCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *App) setupLogging() error {
	level := a.flags.logLevel
	if level == "" {
		level = defaultCLILogLevel
		if v, ok := a.env.Value(constants.EnvLogLevel); ok {
			level = v
		}
	}

	if !util.ShouldUseColors() {
		pterm.DisableColor()
	}

	lcfg := &logger.Config{
		Writer: a.logOut,
		Level:  level,
		Theme:  "default",
	}
	if dir, ok := a.env.Value(constants.EnvLogDir); ok {
		lcfg.FileOutput = true
		lcfg.LogDir = dir
		lcfg.MaxSize = 10
		lcfg.MaxBackups = 3
		lcfg.MaxAge = 14
	}

	logInstance, styled, cleanup, err := logger.NewWithTheme(lcfg)
	if err != nil {
		return err
	}
	a.slog, a.log, a.cleanup = logInstance, styled, cleanup
	return nil
}

func (a *App) close() {
	if a.profiler != nil {
		_ = a.profiler.Close()
	}
	if a.cleanup != nil {
		a.cleanup()
	}
}

func (a *App) catalogue() (*registry.Registry, error) {
	path, _ := a.env.Value(constants.EnvModelsYAML)
	return registry.LoadFile(path)
}

func (a *App) configOptions(catalogue *registry.Registry) config.Options {
	return config.Options{
		Logger:        a.slog,
		Env:           a.env,
		ConfigPath:    a.flags.configPath,
		WorkDir:       a.workDir,
		CacheDir:      a.cacheDir,
		SearchRoot:    a.searchRoot,
		FallbackModel: catalogue.DefaultID(),
	}
}

// resolve loads the catalogue and the merged configuration without touching
// any backend.
func (a *App) resolve() (*config.Resolved, *registry.Registry, error) {
	catalogue, err := a.catalogue()
	if err != nil {
		return nil, nil, err
	}
	res, err := config.Resolve(a.configOptions(catalogue))
	if err != nil {
		return nil, nil, err
	}
	return res, catalogue, nil
}

func (a *App) newLLM(ctx context.Context, extra ...chillm.Option) (*chillm.LLM, error) {
	opts := []chillm.Option{
		chillm.WithConfigPath(a.flags.configPath),
		chillm.WithWorkDir(a.workDir),
		chillm.WithCacheDir(a.cacheDir),
		chillm.WithSearchRoot(a.searchRoot),
		chillm.WithEnv(a.env),
		chillm.WithLogger(a.slog),
		chillm.WithTags(a.flags.tags...),
	}
	return chillm.New(ctx, append(opts, extra...)...)
}
