package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dropzy/dropzy/internal/api"
	"github.com/dropzy/dropzy/internal/core/styles"
	"github.com/dropzy/dropzy/internal/core/validate"
	"github.com/dropzy/dropzy/internal/dropzy"
	"github.com/dropzy/dropzy/internal/printer"
	"github.com/dropzy/dropzy/pkg/iojson"
)

type AuthCmd struct {
	flags *Flags
	app   *dropzy.App

	// flags
	email         string
	name          string
	passwordStdin bool

	// stdin is replaced in tests
	stdin io.Reader
}

// NewAuthCmd creates the login, register, logout and whoami commands.
func NewAuthCmd(flags *Flags, app *dropzy.App) *AuthCmd {
	return &AuthCmd{flags: flags, app: app, stdin: os.Stdin}
}

// Register adds the auth commands to the application.
func (cmd *AuthCmd) Register(app *cli.Command) *cli.Command {
	emailFlag := &cli.StringFlag{
		Name:        "email",
		Aliases:     []string{"e"},
		Usage:       "account email",
		Sources:     cli.EnvVars("DROPZY_EMAIL"),
		Destination: &cmd.email,
	}
	passwordStdinFlag := &cli.BoolFlag{
		Name:        "password-stdin",
		Usage:       "read the password from stdin",
		Destination: &cmd.passwordStdin,
	}

	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Sign in and store the session token",
			UsageText: "dropzy login [--email EMAIL] [--password-stdin]",
			Description: `Prompts for email and password when they are not given.

Use --password-stdin to pipe the password, for example from a secret manager.`,
			Flags: []cli.Flag{emailFlag, passwordStdinFlag},
			Action: func(ctx context.Context, c *cli.Command) error {
				return cmd.authenticate(ctx, c, false)
			},
		},
		&cli.Command{
			Name:      "register",
			Usage:     "Create an account and sign in",
			UsageText: "dropzy register [--email EMAIL] [--name NAME] [--password-stdin]",
			Flags: []cli.Flag{
				emailFlag,
				passwordStdinFlag,
				&cli.StringFlag{
					Name:        "name",
					Usage:       "display name",
					Destination: &cmd.name,
				},
			},
			Action: func(ctx context.Context, c *cli.Command) error {
				return cmd.authenticate(ctx, c, true)
			},
		},
		&cli.Command{
			Name:   "logout",
			Usage:  "Sign out and forget the stored token",
			Action: cmd.runLogout,
		},
		&cli.Command{
			Name:   "whoami",
			Usage:  "Show the signed in user",
			Action: cmd.runWhoami,
		},
	)

	return app
}

func (cmd *AuthCmd) authenticate(ctx context.Context, c *cli.Command, register bool) error {
	p := printer.Ctx(ctx)

	password, err := cmd.credentials(register)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	if err := validate.Credentials(cmd.email, password); err != nil {
		return err
	}

	if err := connect(ctx, cmd.app); err != nil {
		return err
	}

	var res api.AuthResult
	if register {
		res, err = cmd.app.API.Register(ctx, cmd.email, password, cmd.name)
	} else {
		res, err = cmd.app.API.Login(ctx, cmd.email, password)
	}
	if err != nil {
		return err
	}

	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, map[string]any{
			"user_id": res.UserID,
			"email":   res.Email,
			"name":    res.Name,
		})
	}

	if res.Token == "" {
		p.Warnf("Account created for %s, sign in with 'dropzy login'", res.Email)
		return nil
	}
	p.Successf("Signed in as %s", res.Email)
	return nil
}

// credentials fills in missing fields with a form, or reads the password
// from stdin when --password-stdin is set.
func (cmd *AuthCmd) credentials(register bool) (string, error) {
	var password string

	if cmd.passwordStdin {
		line, err := bufio.NewReader(cmd.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	if f, ok := cmd.stdin.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return "", errors.New("no terminal for the password prompt; use --password-stdin")
	}

	var fields []huh.Field
	if cmd.email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Validate(validate.Email).
			Value(&cmd.email))
	}
	if register && cmd.name == "" {
		fields = append(fields, huh.NewInput().
			Title("Name").
			Description("Optional").
			Value(&cmd.name))
	}
	fields = append(fields, huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Validate(validate.Required).
		Value(&password))

	err := huh.NewForm(huh.NewGroup(fields...)).WithTheme(styles.FormTheme()).Run()
	return password, err
}

func (cmd *AuthCmd) runLogout(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if !cmd.app.Session.IsAuthenticated() {
		p.Infof("Not signed in")
		return nil
	}

	if err := connect(ctx, cmd.app); err != nil {
		return err
	}
	if err := cmd.app.API.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	p.Successf("Signed out")
	return nil
}

func (cmd *AuthCmd) runWhoami(ctx context.Context, c *cli.Command) error {
	user, ok := cmd.app.Session.User()
	if !ok {
		if cmd.flags.JSON {
			return iojson.WriteWith(c.Root().Writer, os.Stderr, map[string]any{"authenticated": false})
		}
		return cli.Exit("not signed in, run 'dropzy login'", 1)
	}

	if cmd.flags.JSON {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, map[string]any{
			"authenticated": true,
			"user_id":       user.ID,
			"email":         user.Email,
			"name":          user.Name,
		})
	}

	out := c.Root().Writer
	if user.Name != "" {
		_, _ = fmt.Fprintf(out, "%s <%s>\n", user.Name, user.Email)
		return nil
	}
	_, _ = fmt.Fprintln(out, user.Email)
	return nil
}
