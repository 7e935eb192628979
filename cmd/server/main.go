package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var stdinConsole bool

// rootCmd runs the chat server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "chatd",
	Short: "Multi-user line protocol chat server",
	Long: `chatd serves the line-oriented chat protocol over TCP and, when
HTTP_PORT is set, over WebSocket alongside a small operator API.

Configuration is read from the environment (CHAT_PORT, DATA_DIR, JWT_SECRET, ...).`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&stdinConsole, "console", true, "Read operator commands from standard input")
	rootCmd.AddCommand(tokenCmd)
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
