package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/moonlink/internal/client"
	"github.com/yndnr/moonlink/internal/core/domain"
)

// SignUpCommand registers a new account and stores its token.
func SignUpCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Create an account and log in",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Account name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			passwordFlag(),
		},
		Action: signUp,
	}
}

// LoginCommand signs in with credentials or installs an existing token.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and store the session token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "Account name",
			},
			passwordFlag(),
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Use an existing bearer token instead of credentials",
				EnvVars: []string{"MOONLINK_TOKEN"},
			},
		},
		Action: login,
	}
}

// LogoutCommand clears the stored session.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the stored session token",
		Action: logout,
	}
}

// WhoamiCommand restores the stored session and prints the user.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the logged-in user",
		Action: whoami,
	}
}

// RefreshCommand refetches the user from the server.
func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:   "refresh",
		Usage:  "Refetch the logged-in user, bypassing the cache",
		Action: refresh,
	}
}

func passwordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "Account password (prompted when omitted)",
		EnvVars: []string{"MOONLINK_PASSWORD"},
	}
}

// readPassword returns --password or reads one line from the app's input.
func readPassword(c *cli.Context) (string, error) {
	if pw := c.String("password"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(c.App.ErrWriter, "Password: ")
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", domain.ErrInvalidArgument.WithDetails("password is required")
	}
	return line, nil
}

// withClient opens a client without the live channel, runs fn, and closes
// the client.
func withClient(c *cli.Context, fn func(ctx context.Context, cl *client.Client) error) (err error) {
	cfg := *GetConfig(c)
	cfg.Live.Enabled = false

	cl, err := openClientWith(c, &cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, cl.Close())
	}()

	return fn(c.Context, cl)
}

func signUp(c *cli.Context) error {
	password, err := readPassword(c)
	if err != nil {
		return err
	}
	return withClient(c, func(ctx context.Context, cl *client.Client) error {
		user, err := cl.SignUp(ctx, c.String("username"), c.String("email"), password)
		if err != nil {
			return err
		}
		return printResult(c, user)
	})
}

func login(c *cli.Context) error {
	if token := c.String("token"); token != "" {
		return withClient(c, func(ctx context.Context, cl *client.Client) error {
			if err := cl.Login(ctx, token, nil); err != nil {
				return err
			}
			user, err := cl.RefetchUser(ctx)
			if err != nil {
				return err
			}
			return printResult(c, user)
		})
	}

	username := c.String("username")
	if username == "" {
		return domain.ErrInvalidArgument.WithDetails("--username or --token is required")
	}
	password, err := readPassword(c)
	if err != nil {
		return err
	}
	return withClient(c, func(ctx context.Context, cl *client.Client) error {
		user, err := cl.SignIn(ctx, username, password)
		if err != nil {
			return err
		}
		return printResult(c, user)
	})
}

func logout(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, cl *client.Client) error {
		if err := cl.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Logged out.")
		return nil
	})
}

func whoami(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, cl *client.Client) error {
		user, err := restoreUser(ctx, cl)
		if err != nil {
			return err
		}
		return printResult(c, user)
	})
}

func refresh(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, cl *client.Client) error {
		if _, err := restoreUser(ctx, cl); err != nil {
			return err
		}
		user, err := cl.RefetchUser(ctx)
		if err != nil {
			return err
		}
		return printResult(c, user)
	})
}

// restoreUser resumes the stored session. No stored token is an error.
func restoreUser(ctx context.Context, cl *client.Client) (*domain.UserSnapshot, error) {
	user, err := cl.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotAuthenticated.WithDetails("run 'moonlink login' first")
	}
	return user, nil
}
