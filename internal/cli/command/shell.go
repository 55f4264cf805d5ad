package command

import (
	"errors"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/moonlink/internal/cli/output"
	"github.com/yndnr/moonlink/internal/cli/repl"
	"github.com/yndnr/moonlink/internal/config"
)

// ShellCommand starts the interactive shell.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive session with a persistent cache and live channel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "History file (empty disables persistence)",
				Value: filepath.Join(config.HomeDir(), "history"),
			},
		},
		Action: shell,
	}
}

func shell(c *cli.Context) (err error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	cl, err := openClientWith(c, GetConfig(c), nil)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, cl.Close())
	}()

	printer := newEventPrinter(c.App.Writer, format)
	cl.OnMessage(printer.message)

	// Resume a stored session so the live channel comes up right away.
	if _, err := cl.Restore(c.Context); err != nil {
		PrintError(c.App.ErrWriter, err)
	}

	r := repl.New(cl,
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithFormatter(output.NewFormatter(format)),
		repl.WithHistory(repl.NewHistory(c.String("history"))),
	)
	return r.Run(c.Context)
}
