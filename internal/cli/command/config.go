package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/moonlink/internal/cli/output"
	"github.com/yndnr/moonlink/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the merged configuration (defaults, file, env, flags)",
				Action: configShow,
			},
			{
				Name:   "path",
				Usage:  "Print the config file in use",
				Action: configPath,
			},
		},
	}
}

// configView is the printable form of config.Config.
type configView struct {
	API struct {
		BaseURL string `json:"base_url"`
		Timeout string `json:"timeout"`
	} `json:"api"`
	Live struct {
		Enabled          bool     `json:"enabled"`
		URL              string   `json:"url"`
		Backoff          []string `json:"backoff"`
		TerminalCodes    []int    `json:"terminal_codes"`
		HandshakeTimeout string   `json:"handshake_timeout"`
	} `json:"live"`
	Session struct {
		CacheTTL string `json:"cache_ttl"`
	} `json:"session"`
	Storage struct {
		Dir        string `json:"dir"`
		Ephemeral  bool   `json:"ephemeral"`
		Encrypt    bool   `json:"encrypt"`
		KeyFile    string `json:"key_file"`
		Passphrase string `json:"passphrase,omitempty"`
	} `json:"storage"`
	TLS struct {
		CAFile string `json:"ca_file,omitempty"`
		CADir  string `json:"ca_dir,omitempty"`
	} `json:"tls"`
	Log struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
	Metrics struct {
		Address string `json:"address,omitempty"`
	} `json:"metrics"`
}

func newConfigView(cfg *config.Config) configView {
	var v configView
	v.API.BaseURL = cfg.API.BaseURL
	v.API.Timeout = cfg.API.Timeout.String()

	v.Live.Enabled = cfg.Live.Enabled
	v.Live.URL = cfg.Live.URL
	for _, d := range cfg.Live.Backoff {
		v.Live.Backoff = append(v.Live.Backoff, d.String())
	}
	v.Live.TerminalCodes = cfg.Live.TerminalCodes
	v.Live.HandshakeTimeout = cfg.Live.HandshakeTimeout.String()

	v.Session.CacheTTL = cfg.Session.CacheTTL.String()

	v.Storage.Dir = cfg.Storage.Dir
	v.Storage.Ephemeral = cfg.Storage.Ephemeral
	v.Storage.Encrypt = cfg.Storage.Encrypt
	v.Storage.KeyFile = cfg.Storage.KeyFile
	if cfg.Storage.Passphrase != "" {
		v.Storage.Passphrase = "********"
	}

	v.TLS.CAFile = cfg.TLS.CAFile
	v.TLS.CADir = cfg.TLS.CADir

	v.Log.Level = cfg.Log.Level
	v.Log.Format = cfg.Log.Format
	v.Metrics.Address = cfg.Metrics.Address
	return v
}

func configShow(c *cli.Context) error {
	view := newConfigView(GetConfig(c))
	if c.String("output") == "table" {
		// Nested sections read better as YAML than as a two-column table.
		return output.NewFormatter(output.FormatYAML).Format(c.App.Writer, view)
	}
	return printResult(c, view)
}

func configPath(c *cli.Context) error {
	path := watchedConfigPath(c)
	if path == "" {
		fmt.Fprintf(c.App.Writer, "%s (not present, using defaults)\n", config.DefaultConfigPath())
		return nil
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}
