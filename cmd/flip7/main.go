// flip7 is a harness for playing and debugging Flip 7 games from a terminal
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"flip7-server/internal/broker"
	"flip7-server/internal/config"
	"flip7-server/pkg/flip7"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	stateFile string
	logLevel  string
	rawOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "flip7",
	Short:         "Play and debug Flip 7 games",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}

		logrus.SetLevel(level)
		logrus.SetOutput(os.Stderr)
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			logrus.SetFormatter(&logrus.JSONFormatter{})
		}

		return nil
	},
}

func newHarness(cmd *cobra.Command) *harness {
	return &harness{
		path:   stateFile,
		out:    cmd.OutOrStdout(),
		logger: logrus.StandardLogger(),
		// pipes get compact JSON
		raw: rawOutput || !term.IsTerminal(int(os.Stdout.Fd())),
	}
}

func newCmd() *cobra.Command {
	var players int
	var seed int64

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new game and deal the first round",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newHarness(cmd).newGame(players, seed)
		},
	}

	cmd.Flags().IntVar(&players, "players", defaultPlayers, "number of players")
	cmd.Flags().Int64Var(&seed, "seed", defaultSeed, "random seed for a reproducible game")
	return cmd
}

func playerCmd(use, short string, action func(h *harness, playerID string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <player>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return action(newHarness(cmd), args[0])
		},
	}
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Deal the next round",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newHarness(cmd).start()
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current game state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newHarness(cmd).state()
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <script>",
	Short: "Run the commands in a script file, one per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return newHarness(cmd).simulate(f)
	},
}

func demoCmd() *cobra.Command {
	var seed int64
	var stayAt int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Play a two player game to the end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newHarness(cmd).demo(seed, stayAt)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", defaultSeed, "random seed")
	cmd.Flags().IntVar(&stayAt, "stay-at", 25, "stay once a hand totals at least this much")
	return cmd
}

func watchCmd() *cobra.Command {
	var url, prefix string

	cmd := &cobra.Command{
		Use:   "watch [game]",
		Short: "Print snapshots a server publishes to NATS",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID := "*"
			if len(args) == 1 {
				gameID = args[0]
			}

			if url == "" {
				return fmt.Errorf("a NATS url is required, set --nats or FLIP7_NATS_URL")
			}

			nc, err := broker.Connect(url, "flip7-watch")
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h := newHarness(cmd)
			return broker.Watch(ctx, nc, prefix, gameID, func(snap *flip7.Snapshot) {
				if err := h.printSnapshot(snap); err != nil {
					logrus.WithError(err).Warn("could not print snapshot")
				}
			})
		},
	}

	cfg := config.Instance()
	cmd.Flags().StringVar(&url, "nats", cfg.NATS.URL, "NATS server url")
	cmd.Flags().StringVar(&prefix, "prefix", cfg.NATS.SubjectPrefix, "subject prefix")
	return cmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateFile, "state", defaultStateFile, "game state file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().BoolVar(&rawOutput, "raw", false, "print compact JSON")

	rootCmd.AddCommand(
		newCmd(),
		startCmd,
		playerCmd("draw", "Draw a card for a player", (*harness).draw),
		playerCmd("stay", "End a player's turn for the round", (*harness).stay),
		stateCmd,
		simulateCmd,
		demoCmd(),
		watchCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
