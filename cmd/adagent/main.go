package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/adk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tbxark/adagent/agent"
	"github.com/tbxark/adagent/auth"
	"github.com/tbxark/adagent/config"
	"github.com/tbxark/adagent/console"
	"github.com/tbxark/adagent/dialogue"
	"github.com/tbxark/adagent/llm"
	"github.com/tbxark/adagent/metrics"
	"github.com/tbxark/adagent/planner"
	"github.com/tbxark/adagent/platform"
	"github.com/tbxark/adagent/submit"
	"github.com/tbxark/adagent/types"
	"github.com/tbxark/adagent/validate"
)

const maxLoginAttempts = 3

type flags struct {
	configPath  string
	logLevel    string
	noLLM       bool
	toolCalling bool
	showMetrics bool
	useRunner   bool
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "adagent",
		Short:         "Create a TikTok ad campaign through conversation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), &f)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&f.noLLM, "no-llm", false, "use the rule-based planner only")
	cmd.Flags().BoolVar(&f.toolCalling, "tool-calling", false, "ask the model for a tool call instead of JSON text")
	cmd.Flags().BoolVar(&f.showMetrics, "metrics", false, "print counters when the session ends")
	cmd.Flags().BoolVar(&f.useRunner, "adk", false, "drive each turn through an eino adk runner")
	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "adagent: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	slog.SetLogLoggerLevel(level)

	conf, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.noLLM {
		conf.LLM.Disabled = true
	}
	if f.toolCalling {
		conf.LLM.ToolCalling = true
	}
	slog.Info("Loaded config", "config", conf.String())

	io := console.NewTerminal(os.Stdin, os.Stdout, nil)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	session := auth.NewSession(auth.NewMock(conf.Auth), conf.Timeouts.Auth)
	token, err := login(ctx, session, io)
	if err != nil {
		return err
	}

	completer, err := newCompleter(ctx, conf.LLM)
	if err != nil {
		return err
	}
	driver, err := newDriver(conf, completer, session, token, io, m)
	if err != nil {
		return err
	}

	var result *agent.Result
	if f.useRunner {
		result, err = serve(ctx, driver, io)
	} else {
		result, err = driver.Run(ctx)
	}
	if err != nil {
		return err
	}
	slog.Info("Session finished", "session", result.SessionID, "phase", result.Phase)

	if f.showMetrics {
		summary, sErr := metrics.Summary(registry)
		if sErr != nil {
			return sErr
		}
		io.Say(console.StyleInfo, summary)
	}
	return nil
}

func newDriver(conf *config.Config, completer llm.Completer, session *auth.Session, token *auth.Token, io console.IO, m *metrics.Metrics) (*agent.Driver, error) {
	prompts, err := dialogue.NewPromptBuilder(conf.Rules)
	if err != nil {
		return nil, err
	}
	validator := validate.New(conf.Rules)
	reconciler := dialogue.NewReconciler(
		completer,
		planner.New(validator, conf.Rules.MaxAdTextLength),
		prompts,
		dialogue.WithTimeout(conf.Timeouts.Model),
		dialogue.WithMetrics(m),
	)

	ads := platform.NewMock(conf.Platform, conf.Auth.TokenSecret)
	submitter := submit.New(validator, ads.Client, session, token.AccessToken, nil, conf.Retry,
		submit.WithTimeout(conf.Timeouts.Platform),
		submit.WithMetrics(m),
	)
	return agent.NewDriver(conf, validator, reconciler, submitter, io, agent.WithMetrics(m)), nil
}

// serve feeds each line of input to an adk runner wrapping the driver until
// the agent signals exit or input runs out.
func serve(ctx context.Context, driver *agent.Driver, io console.IO) (*agent.Result, error) {
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: agent.NewAgent("ad_campaign", "Collects and submits a TikTok ad campaign", driver),
	})
	driver.Greet(ctx)
	for exit := false; !exit; {
		input, err := io.Ask(ctx, "You:")
		if errors.Is(err, console.ErrClosed) {
			break
		}
		if err != nil {
			return driver.Result(), fmt.Errorf("read user input: %w", err)
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		iter := runner.Query(ctx, input)
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				return driver.Result(), event.Err
			}
			if event.Action != nil && event.Action.Exit {
				exit = true
			}
		}
	}
	return driver.Result(), nil
}

// login runs the authorization-code exchange interactively.
func login(ctx context.Context, session *auth.Session, io console.IO) (*auth.Token, error) {
	io.Say(console.StyleHeading, "TikTok Ads Authorization")
	io.Say(console.StyleInfo, "Open this URL to authorize the app:\n"+session.AuthorizationURL())
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		code, err := io.Ask(ctx, "Authorization code:")
		if err != nil {
			if errors.Is(err, console.ErrClosed) {
				return nil, errors.New("authorization cancelled")
			}
			return nil, err
		}
		token, err := session.Login(ctx, code)
		if err == nil {
			io.Say(console.StyleSuccess, "Authorized.")
			return token, nil
		}
		slog.Warn("Authorization failed", "attempt", attempt, "error", err)
		io.Say(console.StyleError, "Authorization failed: "+err.Error())
		io.Say(console.StyleWarning, auth.ActionFor(err))
	}
	return nil, fmt.Errorf("authorization failed after %d attempts", maxLoginAttempts)
}

func newCompleter(ctx context.Context, conf config.LLM) (llm.Completer, error) {
	if conf.Disabled {
		return llm.Disabled{}, nil
	}
	cm, err := llm.NewOpenAIChatModel(ctx, conf)
	if err != nil {
		return nil, err
	}
	if conf.ToolCalling {
		return llm.NewToolCompleter[types.TurnResponse](cm, "reply_turn", "Reply to the user and report the collected campaign fields")
	}
	return llm.NewChatCompleter(cm), nil
}
