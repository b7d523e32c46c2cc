package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"schedsync/internal/app"
	"schedsync/internal/config"
	"schedsync/internal/gateway"
	"schedsync/internal/resolve"
	"schedsync/internal/schedule"
	logx "schedsync/pkg/logx"
)

var version = "dev"

type rootOptions struct {
	configPath    string
	namespace     string
	host          string
	schedulesFile string
	logLevel      string
	output        string

	getenv   func(string) string
	stdout   io.Writer
	registry *resolve.Registry
	gateway  gateway.Gateway
}

// Option customises the root command, mainly for embedding and tests.
type Option func(*rootOptions)

// WithRegistry supplies workflow and input schema registrations.
func WithRegistry(r *resolve.Registry) Option { return func(o *rootOptions) { o.registry = r } }

// WithGateway replaces the Temporal connection.
func WithGateway(gw gateway.Gateway) Option { return func(o *rootOptions) { o.gateway = gw } }

// WithStdout redirects program output (tables, JSON).
func WithStdout(w io.Writer) Option { return func(o *rootOptions) { o.stdout = w } }

// WithEnv replaces os.Getenv.
func WithEnv(getenv func(string) string) Option { return func(o *rootOptions) { o.getenv = getenv } }

// NewRootCmd creates the root cobra command for the schedsync CLI.
func NewRootCmd(opts ...Option) *cobra.Command {
	o := &rootOptions{getenv: os.Getenv, stdout: logx.Stdout()}
	for _, fn := range opts {
		fn(o)
	}

	root := &cobra.Command{
		Use:     "schedsync",
		Short:   "Reconcile declared schedules against Temporal",
		Long:    "schedsync creates, updates, pauses and deletes Temporal schedules so they match a config file.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch o.output {
			case "table", "json":
				return nil
			default:
				return fmt.Errorf("--output must be table or json, got %q", o.output)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", o.getenv(config.EnvConfig), "Config file, YAML or JSON (or "+config.EnvConfig+" env)")
	pf.StringVarP(&o.namespace, "namespace", "n", "", "Temporal namespace (overrides config and "+config.EnvNamespace+")")
	pf.StringVar(&o.host, "host", "", "Temporal host:port (overrides config and "+config.EnvHost+")")
	pf.StringVarP(&o.schedulesFile, "schedules-file", "s", "", "YAML file with a top-level schedules key; replaces config schedules")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.StringVarP(&o.output, "output", "o", "table", "Output format (table, json)")

	root.AddCommand(
		newSyncCmd(o),
		newPlanCmd(o),
		newValidateCmd(o),
		newWatchCmd(o),
	)
	return root
}

// overlay applies environment and flag overrides on every (re)load.
func (o *rootOptions) overlay(cfg *config.Config) error {
	cfg.ApplyEnv(o.getenv)
	if v := strings.TrimSpace(o.host); v != "" {
		cfg.Temporal.Host = v
	}
	if v := strings.TrimSpace(o.namespace); v != "" {
		cfg.Temporal.Namespace = v
	}
	if v := strings.TrimSpace(o.logLevel); v != "" {
		cfg.Logging.Level = v
	}
	if o.schedulesFile != "" {
		scheds, err := config.LoadSchedulesFile(o.schedulesFile)
		if err != nil {
			return err
		}
		cfg.Schedules = scheds
	}
	return nil
}

// newApp loads the config and wires the application.
func (o *rootOptions) newApp() (*app.App, *logx.Service, error) {
	cfgm := config.NewConfigManager(o.configPath)
	cfgm.SetOverlay(o.overlay)
	cfgm.AlsoWatch(o.schedulesFile)

	cfg, err := cfgm.Load()
	if err != nil {
		return nil, nil, &LoadError{Path: o.configPath, Err: err}
	}

	logs, _ := logx.New(app.LogConfig(cfg.Logging))
	a, err := app.New(app.Options{
		Config:   cfgm,
		Registry: o.registry,
		Gateway:  o.gateway,
		Logs:     logs,
	})
	if err != nil {
		_ = logs.Close()
		return nil, nil, err
	}
	return a, logs, nil
}

// LoadError reports a config file that could not be read, parsed or validated.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ExitCode maps a command error to the process exit status: 0 on success,
// 2 for configuration defects, 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var le *LoadError
	if schedule.IsConfigError(err) || errors.As(err, &le) {
		return 2
	}
	return 1
}
