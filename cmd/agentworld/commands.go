package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentworld"
	"github.com/hupe1980/agentworld/artifact"
	"github.com/hupe1980/agentworld/config"
	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/runner"
)

type globalFlags struct {
	configPath string
	envFile    string
	chatID     string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "agentworld",
		Short: "Multi-agent group chat with turn budgets and shared memory",
		Long: `agentworld hosts a world of LLM agents chatting with a human.

Agents are addressed with @name. Every agent remembers the whole conversation
from its own perspective, and each agent may call its model only a limited
number of times before the human has to speak again.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "agentworld.yaml", "path to the configuration file")
	root.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "optional .env file with API keys")
	root.PersistentFlags().StringVar(&flags.chatID, "chat", "", "chat id (defaults to the world's chat)")

	root.AddCommand(
		newInitCmd(flags),
		newChatCmd(flags),
		newSendCmd(flags),
		newViewCmd(flags),
		newExportCmd(flags),
	)

	return root
}

func newInitCmd(flags *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(flags.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", flags.configPath)
			}

			if err := config.DefaultConfig().Save(flags.configPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", flags.configPath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newChatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorld(cmd.Context(), flags, func(ctx context.Context, aw *agentworld.AgentWorld, cfg *config.Config) error {
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "world %s: %d agents, turn limit %d. /agents, /view, /quit\n",
					cfg.World.ID, len(cfg.Agents), cfg.WorldConfig().EffectiveTurnLimit())

				return aw.Runner().Chat(ctx, cfg.World.ID, flags.chatID, cmd.InOrStdin(), out)
			})
		},
	}
}

func newSendCmd(flags *globalFlags) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send one message and print the resulting conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorld(cmd.Context(), flags, func(ctx context.Context, aw *agentworld.AgentWorld, cfg *config.Config) error {
				events, err := aw.InvokeSync(ctx, cfg.World.ID, flags.chatID, args[0], sender)

				for _, ev := range events {
					fmt.Fprintln(cmd.OutOrStdout(), runner.FormatEvent(ev))
				}

				return err
			})
		},
	}

	cmd.Flags().StringVar(&sender, "sender", core.SenderHuman, "message sender (human, system or an agent name)")

	return cmd
}

func newViewCmd(flags *globalFlags) *cobra.Command {
	var agents []string

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print the conversation rebuilt from agent memory",
		Long: `Prints the deduplicated global view of a chat, or with --agent the view of
the selected agents. Only meaningful with a persistent memory backend.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorld(cmd.Context(), flags, func(ctx context.Context, aw *agentworld.AgentWorld, cfg *config.Config) error {
				var (
					entries []core.MemoryEntry
					err     error
				)

				if len(agents) > 0 {
					entries, err = aw.FilteredView(ctx, cfg.World.ID, flags.chatID, agents...)
				} else {
					entries, err = aw.GlobalView(ctx, cfg.World.ID, flags.chatID)
				}

				if err != nil {
					return err
				}

				for _, e := range entries {
					fmt.Fprintln(cmd.OutOrStdout(), runner.FormatEntry(e))
				}

				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&agents, "agent", nil, "restrict the view to these agents")

	return cmd
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		agents   []string
		dir      string
		markdown bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save the conversation view as a transcript file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := artifact.NewDirStore(dir)

			return withWorld(cmd.Context(), flags, func(ctx context.Context, aw *agentworld.AgentWorld, cfg *config.Config) error {
				t, err := aw.Export(ctx, cfg.World.ID, flags.chatID, agents...)
				if err != nil {
					return err
				}

				if markdown {
					fmt.Fprint(cmd.OutOrStdout(), t.Markdown())
					return nil
				}

				fmt.Fprintln(cmd.OutOrStdout(), store.Path(t.WorldID, t.ChatID, t.ID))

				return nil
			}, func(o *agentworld.Options) { o.Transcripts = store })
		},
	}

	cmd.Flags().StringSliceVar(&agents, "agent", nil, "restrict the transcript to these agents")
	cmd.Flags().StringVar(&dir, "dir", filepath.Join(".agentworld", "transcripts"), "transcript directory")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the transcript as markdown")

	return cmd
}

// withWorld loads the configuration, builds the world and serves metrics for
// the duration of fn.
func withWorld(
	ctx context.Context,
	flags *globalFlags,
	fn func(context.Context, *agentworld.AgentWorld, *config.Config) error,
	optFns ...func(o *agentworld.Options),
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := config.LoadEnv(flags.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	var reg *prometheus.Registry

	opts := append([]func(o *agentworld.Options){}, optFns...)

	if cfg.Metrics.Addr != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, func(o *agentworld.Options) { o.Registerer = reg })
	}

	aw, err := agentworld.NewFromConfig(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer aw.Close()

	if reg != nil {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return fn(ctx, aw, cfg)
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}
