package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize/english"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"dcaadvisor/internal/adapters/config"
	"dcaadvisor/internal/adapters/kafka"
	"dcaadvisor/internal/bootstrap"
	"dcaadvisor/internal/events"
	"dcaadvisor/internal/services/advisor"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dcaadvisor",
		Short: "Conversational crypto DCA advisor",
		Long: `dcaadvisor answers investment questions with a tool-using language model.
It plans dollar-cost-averaging schedules, analyzes price risk and tracks portfolios.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := bootstrap.NewContainer()
			c.MustInit()

			if err := c.Start(); err != nil {
				c.Shutdown()
				return err
			}
			c.Log.Infow("Container ready", "summary", c.GetMetrics())

			ctx, stop := signalContext(c.Context)
			defer stop()
			<-ctx.Done()

			c.Shutdown()
			return nil
		},
	}
}

func newAskCmd() *cobra.Command {
	var (
		model     string
		sessionID string
		showTrace bool
	)

	cmd := &cobra.Command{
		Use:   "ask [MESSAGE]",
		Short: "Ask the advisor a single question",
		Long: `Ask runs one advisor turn and prints the answer.
Example: dcaadvisor ask "Plan a conservative DCA of $1000 over 10 assets" --model ollama/llama3.1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := bootstrap.NewContainer()
			c.MustInit()
			defer c.Shutdown()

			ctx, stop := signalContext(c.Context)
			defer stop()

			resp, err := c.Business.Advisor.Ask(ctx, advisor.AskRequest{
				Message:        strings.Join(args, " "),
				ConversationID: sessionID,
				Model:          model,
			})
			if resp != nil {
				printAnswer(cmd.OutOrStdout(), resp, showTrace)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Model selector: provider, provider/model or model name")
	cmd.Flags().StringVar(&sessionID, "session", "", "Conversation id to continue")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print the reasoning trace as JSON")

	return cmd
}

func printAnswer(w io.Writer, resp *advisor.AskResponse, showTrace bool) {
	if resp.Message != "" {
		fmt.Fprintln(w, resp.Message)
	}
	for _, r := range resp.Trace.ToolResults() {
		fmt.Fprintf(w, "  · %s %s (%s)\n", r.ToolName, r.Status, r.Duration)
	}
	fmt.Fprintf(w, "\nconversation %s · model %s · %s\n",
		resp.ConversationID, resp.Model, english.Plural(resp.Iterations, "iteration", "iterations"))

	if showTrace {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp.Trace)
	}
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the advisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := bootstrap.NewContainer()
			c.MustInit()
			defer c.Shutdown()

			printTools(cmd.OutOrStdout(), c.Business.Advisor.ListTools())
			return nil
		},
	}
}

func printTools(w io.Writer, schemas []tools.Schema) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMETERS\tDESCRIPTION")
	for _, s := range schemas {
		params := make([]string, 0, len(s.Params))
		for _, p := range s.Params {
			name := p.Name
			if p.Required {
				name += "*"
			}
			params = append(params, name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, strings.Join(params, ","), s.Description)
	}
	_ = tw.Flush()
}

func newEventsCmd() *cobra.Command {
	var fromStart bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail finished-turn events from Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Kafka.Enabled() {
				return errors.Wrap(errors.ErrInvalidInput, "KAFKA_BROKERS is not set")
			}

			consumer := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:    cfg.Kafka.Brokers,
				Topic:      cfg.Kafka.TurnsTopic,
				FromLatest: !fromStart,
			})
			defer consumer.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			err = consumer.Consume(ctx, func(ctx context.Context, msg kafkago.Message) error {
				var ev events.TurnCompleted
				if err := json.Unmarshal(msg.Value, &ev); err != nil {
					return errors.Wrap(err, "decode turn event")
				}
				fmt.Fprintln(out, formatTurn(ev))
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&fromStart, "from-start", false, "Read the topic from the first offset")
	return cmd
}

func formatTurn(ev events.TurnCompleted) string {
	status := ev.Status
	if ev.Reason != "" {
		status += ":" + ev.Reason
	}
	return fmt.Sprintf("%s  %-8s %-24s session=%s model=%s/%s iterations=%d tools=%d %dms",
		ev.Timestamp.Format("15:04:05"), status, ev.RunID, ev.SessionID,
		ev.Provider, ev.Model, ev.Iterations, len(ev.ToolCalls), ev.DurationMs)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dcaadvisor %s\n", bootstrap.Version)
		},
	}
}
