package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/chargectl/internal/app"
	"github.com/florianilch/chargectl/internal/observability"
	"github.com/florianilch/chargectl/internal/vehicle"
)

// shutdownTimeout bounds flushing of exported log records on exit.
const shutdownTimeout = 5 * time.Second

// maxTokenInput caps a token read from stdin.
const maxTokenInput = 64 << 10

// Streams are the standard streams a command reads from and writes to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Execute runs the root command with the given context and arguments.
// Failures are printed before they are returned; use ExitCode to map them.
func Execute(ctx context.Context, args []string) error {
	r := &runner{
		streams: Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr},
		environ: os.Environ,
	}
	return r.run(ctx, args)
}

// runner holds what differs between the binary and tests.
type runner struct {
	streams    Streams
	environ    func() []string
	appOptions []app.Option
}

func (r *runner) run(ctx context.Context, args []string) error {
	cmd := r.rootCommand()
	err := cmd.Run(ctx, args)
	if err != nil {
		newConsole(r.streams.Out, r.streams.Err).Error("%s", err)
	}
	return err
}

func (r *runner) rootCommand() *cli.Command {
	cmd := &cli.Command{
		Name:      "chargectl",
		Usage:     "Control vehicle charging from the command line",
		Reader:    r.streams.In,
		Writer:    r.streams.Out,
		ErrWriter: r.streams.Err,
		// Exit codes are computed by the caller from the returned error.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded beneath the environment",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "write logs to a rotated file instead of stderr",
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "token storage (file|env|keyring|sqlite)",
				Value: string(app.DefaultConfigAuthStorage),
			},
		},
		Commands: []*cli.Command{
			r.vehicleCommand(),
			r.tokenCommand(),
		},
	}

	markUsageErrors(cmd)
	return cmd
}

// markUsageErrors makes flag parsing failures of every command map to the
// invalid-input exit code.
func markUsageErrors(cmd *cli.Command) {
	cmd.OnUsageError = func(_ context.Context, _ *cli.Command, err error, _ bool) error {
		return &usageError{msg: err.Error()}
	}
	for _, sub := range cmd.Commands {
		markUsageErrors(sub)
	}
}

func (r *runner) vehicleCommand() *cli.Command {
	return &cli.Command{
		Name:  "vehicle",
		Usage: "Vehicle commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "vehicle--id",
				Usage: "vehicle identifier",
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "vehicle API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.DurationFlag{
				Name:  "http--timeout",
				Usage: "timeout for each API request",
				Value: app.DefaultConfigHTTPTimeout,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "charging",
				Usage:     "Run a charging action",
				ArgsUsage: "<status|start|stop|wake>",
				Action:    r.withApp(chargingAction),
			},
		},
	}
}

func (r *runner) tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage API tokens",
		Commands: []*cli.Command{
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new token pair",
				Action: r.withApp(tokenRefreshAction),
			},
			{
				Name:  "retrieve",
				Usage: "Show stored tokens",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reveal",
						Usage: "print token values unmasked",
					},
				},
				Action: r.withApp(tokenRetrieveAction),
			},
			{
				Name:      "set",
				Usage:     "Store a token",
				ArgsUsage: "<token|->",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "token type (access|refresh)",
						Value:   string(app.TokenKindAccess),
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "token lifetime (defaults to the JWT exp claim for access tokens)",
					},
				},
				Action: r.withApp(tokenSetAction),
			},
		},
	}
}

// invocation is what an action needs for one run.
type invocation struct {
	app     *app.App
	console *console
	streams Streams
}

type invocationAction func(ctx context.Context, cmd *cli.Command, inv *invocation) error

// withApp loads configuration, sets up logging and builds the App before
// running action, and releases them afterwards.
func (r *runner) withApp(action invocationAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := loadDotenv(cmd.String("env-file"), cmd.IsSet("env-file")); err != nil {
			return err
		}

		cfg, err := loadConfig(resolveConfigPath(cmd.String("config")), cmd, r.environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		opts := cfg.ObservabilityOptions()
		opts.Stderr = r.streams.Err
		shutdown, err := observability.Instrument(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		slog.SetDefault(slog.Default().With("invocation_id", uuid.NewString()))

		application, err := app.New(cfg, r.appOptions...)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}
		defer func() {
			if err := application.Close(); err != nil {
				slog.WarnContext(ctx, "failed to close token store", "error", err)
			}
		}()

		slog.DebugContext(ctx, "running command", "command", cmd.FullName())

		return action(ctx, cmd, &invocation{
			app:     application,
			console: newConsole(r.streams.Out, r.streams.Err),
			streams: r.streams,
		})
	}
}

var chargingNotes = map[vehicle.Action]string{
	vehicle.ActionStatus: "Checking vehicle current charging status",
	vehicle.ActionStart:  "Attempting to start vehicle charging",
	vehicle.ActionStop:   "Attempting to stop vehicle charging",
	vehicle.ActionWake:   "Attempting to wake vehicle",
}

func chargingAction(ctx context.Context, cmd *cli.Command, inv *invocation) error {
	if cmd.Args().Len() != 1 {
		return &usageError{msg: "expected exactly one action (status|start|stop|wake)"}
	}
	action := cmd.Args().First()

	if note, ok := chargingNotes[vehicle.Action(action)]; ok {
		inv.console.Note("%s", note)
	}

	outcome, err := inv.app.Charging(ctx, action)
	if err != nil {
		return err
	}

	switch outcome.Action {
	case vehicle.ActionStatus:
		inv.console.Success("Vehicle battery level: %d%%", outcome.BatteryLevel)
	case vehicle.ActionStart:
		inv.console.Success("Vehicle charging started successfully")
	case vehicle.ActionStop:
		inv.console.Success("Vehicle charging stopped successfully")
	case vehicle.ActionWake:
		inv.console.Success("Vehicle woken up successfully")
	}
	return nil
}

func tokenRefreshAction(ctx context.Context, _ *cli.Command, inv *invocation) error {
	grant, err := inv.app.RefreshToken(ctx)
	if err != nil {
		return err
	}
	inv.console.Success("Api token refreshed successfully (valid for %s)", grant.ExpiresIn)
	return nil
}

func tokenRetrieveAction(ctx context.Context, cmd *cli.Command, inv *invocation) error {
	statuses, err := inv.app.RetrieveTokens(ctx)
	if err != nil {
		return err
	}

	reveal := cmd.Bool("reveal")
	for _, s := range statuses {
		value := s.Value
		if !reveal {
			value = mask(value)
		}

		switch s.State {
		case app.TokenStateMissing:
			inv.console.Missing("%s not found", s.Name)
		case app.TokenStateExpired:
			inv.console.Warning("%s: %s (expired at %s)", s.Name, value, s.ExpiresAt.Format(time.RFC3339))
		default:
			if s.ExpiresAt.IsZero() {
				inv.console.Info("%s: %s", s.Name, value)
			} else {
				inv.console.Info("%s: %s (expires at %s)", s.Name, value, s.ExpiresAt.Format(time.RFC3339))
			}
		}
	}
	return nil
}

func tokenSetAction(ctx context.Context, cmd *cli.Command, inv *invocation) error {
	if cmd.Args().Len() != 1 {
		return &usageError{msg: "missing token to set"}
	}

	value := cmd.Args().First()
	if value == "-" {
		var err error
		value, err = readToken(inv.streams.In, inv.streams.Err)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
	}

	kind := cmd.String("type")
	expiresAt, err := inv.app.SetToken(ctx, kind, value, cmd.Duration("ttl"))
	if err != nil {
		return err
	}

	if expiresAt.IsZero() {
		inv.console.Success("%s token saved successfully", kind)
	} else {
		inv.console.Success("%s token saved successfully (expires at %s)", kind, expiresAt.Format(time.RFC3339))
	}
	return nil
}

// readToken reads a token without echo from a terminal, or in full from a pipe.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(prompt, "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	b, err := io.ReadAll(io.LimitReader(in, maxTokenInput))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
