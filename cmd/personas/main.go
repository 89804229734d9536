// Package main is the CLI entry point for personas.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/opencode-personas/internal/config"
	"github.com/eliteGoblin/opencode-personas/internal/domain"
	"github.com/eliteGoblin/opencode-personas/internal/infra"
	"github.com/eliteGoblin/opencode-personas/internal/manifest"
	"github.com/eliteGoblin/opencode-personas/internal/plugin"
	"github.com/eliteGoblin/opencode-personas/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "personas",
	Short: "Persona prompts for the opencode assistant",
	Long: `personas injects a selectable persona prompt into every system prompt
of the opencode assistant and keeps the bundled personas, the plugin and
its /persona command in sync with the upstream git clone.`,
	Version:      Version,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve plugin hooks over stdin/stdout",
	Long: `Reads JSON-lines hook requests (event, system.transform, command.execute)
from stdin and writes one JSON response per request to stdout.
Logs go to the configured log file, never to stdout.`,
	RunE: runServe,
}

var personaCmd = &cobra.Command{
	Use:   "persona [name|force]",
	Short: "List personas or check a switch",
	Long: `Without an argument, lists available personas and the default selection.
"force" re-scans the persona directory. Any other argument is validated as
a switch target; the selection itself lives in the serving process.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPersona,
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the persona text injected into the system prompt",
	RunE:  runPrompt,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Pull the upstream clone and install changed files",
	Long: `Runs one update check against the upstream git clone: pulls with a
bounded timeout, and if the revision moved, copies the bundled personas,
the plugin entry and the command descriptor into place.`,
	RunE: runUpdate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	verbose    bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/opencode/personas.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	updateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the update result as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(personaCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

// app wires the components for one process.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	service      *usecase.PersonaService
	registry     *manifest.Registry
	synchronizer *usecase.SynchronizerImpl
	plugin       *plugin.Plugin
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.GetRealUserHome(), configPath)
	if err != nil {
		return nil, err
	}

	logger := createLogger(cfg.LogFile, verbose).With(zap.String("service", config.ServiceName))

	store := infra.NewDirPersonaStore(cfg.PersonasDir, logger)
	service := usecase.NewPersonaService(store, cfg.DiscoveryTTL, domain.PersonaID(cfg.DefaultPersona), logger)

	registry := manifest.NewRegistry(cfg)
	pm := infra.NewProcessManager()
	synchronizer := usecase.NewSynchronizer(
		usecase.SynchronizerConfig{
			SourceDir:   cfg.SourceRepoDir,
			PullTimeout: cfg.PullTimeout,
		},
		infra.NewGitClient(pm, logger),
		infra.NewFileSystemManager(),
		registry,
		service,
		logger,
	)

	p := plugin.New(plugin.Config{AutoUpdate: cfg.AutoUpdate}, service, synchronizer, logger)

	return &app{
		cfg:          cfg,
		logger:       logger,
		service:      service,
		registry:     registry,
		synchronizer: synchronizer,
		plugin:       p,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.plugin.Init(ctx)

	hostConfig := plugin.HostConfig{}
	if a.cfg.WatchPersonas {
		hostConfig.WatchDir = a.cfg.PersonasDir
	}

	err = plugin.NewHost(hostConfig, a.plugin, a.logger).Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runPersona(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	a.plugin.Init(cmd.Context())

	var argument string
	if len(args) > 0 {
		argument = args[0]
	}

	parts, _ := a.plugin.ExecuteCommand(plugin.CommandName, argument)
	for _, part := range parts {
		fmt.Println(part.Text)
	}
	return nil
}

func runPrompt(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	a.plugin.Init(cmd.Context())

	system := a.plugin.TransformSystem(nil)
	if len(system) == 0 {
		return fmt.Errorf("no active persona (default %q not found in %s)", a.cfg.DefaultPersona, a.cfg.PersonasDir)
	}
	fmt.Println(strings.Join(system, "\n"))
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	a.service.Init()
	result := a.plugin.RunUpdate(cmd.Context())

	if jsonOutput {
		return printUpdateJSON(result)
	}

	fmt.Printf("Update: %s\n", result.Status)
	fmt.Printf("  Managed: %s\n", strings.Join(a.registry.List(), ", "))
	switch result.Status {
	case domain.UpdateSkipped:
		fmt.Printf("  %s is not a git clone, nothing to update\n", a.cfg.SourceRepoDir)
	case domain.UpdateUnchanged:
		fmt.Printf("  Already at %s\n", domain.ShortRevision(result.After))
	case domain.UpdateApplied:
		fmt.Printf("  %s -> %s\n", domain.ShortRevision(result.Before), domain.ShortRevision(result.After))
		fmt.Printf("  Copied: %s\n", strings.Join(result.Copied, ", "))
		if result.Partial() {
			fmt.Printf("  Failed: %s\n", strings.Join(result.Failed, ", "))
		}
		fmt.Println("  Restart opencode to load a new plugin version.")
	case domain.UpdateFailed:
		fmt.Printf("  Error: %v\n", result.Err)
	}
	if result.PullTimeout {
		fmt.Printf("  Pull timed out after %s\n", a.cfg.PullTimeout)
	}
	return nil
}

func printUpdateJSON(result *domain.UpdateResult) error {
	out := struct {
		Status      domain.UpdateStatus `json:"status"`
		Before      string              `json:"before,omitempty"`
		After       string              `json:"after,omitempty"`
		Copied      []string            `json:"copied,omitempty"`
		Failed      []string            `json:"failed,omitempty"`
		PullTimeout bool                `json:"pull_timeout,omitempty"`
		Error       string              `json:"error,omitempty"`
		DurationMs  int64               `json:"duration_ms"`
	}{
		Status:      result.Status,
		Before:      result.Before,
		After:       result.After,
		Copied:      result.Copied,
		Failed:      result.Failed,
		PullTimeout: result.PullTimeout,
		DurationMs:  result.DurationMs,
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// createLogger writes JSON logs to logFile. stdout carries the host protocol,
// so the fallback is stderr.
func createLogger(logFile string, debug bool) *zap.Logger {
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.TimeKey = "time"
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logConfig.OutputPaths = []string{"stderr"}
	logConfig.ErrorOutputPaths = []string{"stderr"}
	if debug {
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err == nil {
			logConfig.OutputPaths = []string{logFile}
			logConfig.ErrorOutputPaths = []string{logFile}
		}
	}

	logger, err := logConfig.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logConfig.OutputPaths = []string{"stderr"}
		logConfig.ErrorOutputPaths = []string{"stderr"}
		if logger, err = logConfig.Build(); err != nil {
			return zap.NewNop()
		}
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("personas %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
