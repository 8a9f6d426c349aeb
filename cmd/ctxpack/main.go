package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "ctxpack",
	Short:        "Token-budgeted code context packs for coding agents",
	SilenceUsage: true,
	Long: `ctxpack indexes a Go or Python project into a symbol call graph and
answers "what code does the agent need to see" with a context pack that fits
a token budget. It runs as an MCP server (ctxpack serve) or one-shot from
the command line.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

func main() {
	// stdout is reserved for packs and the MCP protocol
	log.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns the library logger for the current flags
func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
