package command

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/moonlink/internal/cli/output"
	"github.com/yndnr/moonlink/internal/client"
	"github.com/yndnr/moonlink/internal/config"
	"github.com/yndnr/moonlink/internal/core/domain"
	"github.com/yndnr/moonlink/internal/infra/buildinfo"
	"github.com/yndnr/moonlink/internal/telemetry/logger"
)

// Metadata keys set by the Before hook.
const (
	metaConfig = "config"
	metaLogger = "logger"
	metaOpen   = "open"
)

// OpenFunc builds the client a command runs against.
type OpenFunc func(cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*client.Client, error)

// App creates the CLI application.
func App() *cli.App {
	return NewApp(client.Open)
}

// NewApp creates the CLI application with a custom client constructor.
func NewApp(open OpenFunc) *cli.App {
	return &cli.App{
		Name:    "moonlink",
		Usage:   "Moonshine RPG session and live-channel client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SignUpCommand(),
			LoginCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			RefreshCommand(),
			WatchCommand(),
			ShellCommand(),
			VersionCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			return setup(c, open)
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file (default ~/.moonlink/config.yaml)",
			EnvVars: []string{"MOONLINK_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "api-url",
			Usage: "Game server API root, e.g. http://localhost:8080/api",
		},
		&cli.StringFlag{
			Name:  "live-url",
			Usage: "Live channel endpoint, e.g. ws://localhost:8080/api/ws",
		},
		&cli.BoolFlag{
			Name:  "no-live",
			Usage: "Do not open the live channel",
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "Extra PEM CA bundle for https/wss endpoints",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Token store directory",
		},
		&cli.StringFlag{
			Name:  "key-file",
			Usage: "Token sealing key file",
		},
		&cli.BoolFlag{
			Name:  "ephemeral",
			Usage: "Keep the token in memory only",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text, json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config string
	Output output.Format

	// Overrides holds explicitly set flags keyed by config path.
	Overrides map[string]any
}

// ParseGlobalFlags extracts global flags from context. Only flags the user
// set end up in Overrides, so env and file values are not masked by
// flag defaults.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]any)
	for flag, key := range map[string]string{
		"api-url":    "api.base_url",
		"live-url":   "live.url",
		"ca-file":    "tls.ca_file",
		"data-dir":   "storage.dir",
		"key-file":   "storage.key_file",
		"log-level":  "log.level",
		"log-format": "log.format",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if c.IsSet("no-live") {
		overrides["live.enabled"] = !c.Bool("no-live")
	}
	if c.IsSet("ephemeral") {
		overrides["storage.ephemeral"] = c.Bool("ephemeral")
	}

	return &GlobalFlags{
		Config:    c.String("config"),
		Output:    format,
		Overrides: overrides,
	}, nil
}

func setup(c *cli.Context, open OpenFunc) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags.Config, flags.Overrides)
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	logCfg.Output = c.App.ErrWriter
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaLogger] = log
	c.App.Metadata[metaOpen] = open
	return nil
}

// GetConfig returns the configuration loaded by the Before hook.
func GetConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// GetLogger returns the logger built by the Before hook.
func GetLogger(c *cli.Context) logger.Logger {
	if l, ok := c.App.Metadata[metaLogger].(logger.Logger); ok {
		return l
	}
	return logger.Nop()
}

// openClientWith builds a client with the loaded configuration. A nil reg
// leaves metrics unregistered.
func openClientWith(c *cli.Context, cfg *config.Config, reg prometheus.Registerer) (*client.Client, error) {
	open, ok := c.App.Metadata[metaOpen].(OpenFunc)
	if !ok {
		open = client.Open
	}
	cl, err := open(cfg, GetLogger(c), reg)
	if err != nil {
		return nil, fmt.Errorf("open client: %w", err)
	}
	return cl, nil
}

// printResult writes data in the --output format.
func printResult(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(c.App.Writer, data)
}

// ExitCode maps an error returned by App.Run to a process exit code.
func ExitCode(err error) int {
	var exit cli.ExitCoder
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return exit.ExitCode()
	case domain.IsUnauthorized(err), errors.Is(err, domain.ErrNotAuthenticated):
		return 3
	case errors.Is(err, domain.ErrSignInRejected):
		return 4
	case errors.Is(err, domain.ErrTransient):
		return 5
	default:
		return 1
	}
}

// PrintError prints an error message to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
