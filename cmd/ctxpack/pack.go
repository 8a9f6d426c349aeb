package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxpack/internal/contextpack"
	"github.com/dshills/ctxpack/internal/format"
	"github.com/dshills/ctxpack/internal/project"
	"github.com/dshills/ctxpack/pkg/types"
)

// packFlags are shared by the pack commands
type packFlags struct {
	project        string
	depth          int
	budget         int
	language       string
	format         string
	allowAmbiguous bool
	session        string
	diffFile       string
}

func (f *packFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.project, "project", "p", ".", "project root")
	cmd.Flags().IntVarP(&f.depth, "depth", "d", 0, "call-graph hops (default from config)")
	cmd.Flags().IntVarP(&f.budget, "budget", "b", 0, "token budget (default from config)")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "go, python or auto")
	cmd.Flags().StringVarP(&f.format, "format", "f", "text", "output format: json or text")
}

func (f *packFlags) registerSymbol(cmd *cobra.Command) {
	f.register(cmd)
	cmd.Flags().BoolVar(&f.allowAmbiguous, "allow-ambiguous", false, "pick the first match for an ambiguous symbol")
}

var (
	relevantFlags packFlags
	contextFlags  packFlags
	diffFlags     packFlags
)

var relevantCmd = &cobra.Command{
	Use:   "relevant <symbol>",
	Short: "Pack a symbol and the functions it calls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPack(cmd, &relevantFlags, func(ctx context.Context, svc *contextpack.Service, req contextpack.Request) (*types.PackResult, error) {
			req.Entry = args[0]
			return svc.GetRelevantContext(ctx, req)
		})
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <symbol>",
	Short: "Pack a symbol with its callers and callees, deduplicated per session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPack(cmd, &contextFlags, func(ctx context.Context, svc *contextpack.Service, req contextpack.Request) (*types.PackResult, error) {
			req.Entry = args[0]
			req.SessionID = contextFlags.session
			return svc.GetSymbolContextPack(ctx, req)
		})
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Pack the symbols a unified diff touches",
	Long:  "Reads a unified diff from --file, or from stdin when --file is omitted or \"-\".",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		diff, err := readDiff(cmd.InOrStdin(), diffFlags.diffFile)
		if err != nil {
			return err
		}
		return runPack(cmd, &diffFlags, func(ctx context.Context, svc *contextpack.Service, req contextpack.Request) (*types.PackResult, error) {
			req.Diff = diff
			return svc.GetDiffContext(ctx, req)
		})
	},
}

func init() {
	relevantFlags.registerSymbol(relevantCmd)

	contextFlags.registerSymbol(contextCmd)
	contextCmd.Flags().StringVarP(&contextFlags.session, "session", "s", "", "session id; a new one is printed when omitted")

	diffFlags.register(diffCmd)
	diffCmd.Flags().StringVar(&diffFlags.diffFile, "file", "", "diff file (default stdin)")

	rootCmd.AddCommand(relevantCmd, contextCmd, diffCmd)
}

type packFunc func(context.Context, *contextpack.Service, contextpack.Request) (*types.PackResult, error)

func runPack(cmd *cobra.Command, flags *packFlags, run packFunc) error {
	f, err := format.Parse(flags.format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := project.Open(ctx, flags.project, project.Options{Language: flags.language, Logger: newLogger()})
	if err != nil {
		return err
	}
	defer p.Close()

	req := contextpack.Request{
		Depth:          p.Config.Depth,
		Budget:         p.Config.TokenBudget(),
		AllowAmbiguous: flags.allowAmbiguous,
	}
	if cmd.Flags().Changed("depth") {
		req.Depth = flags.depth
	}
	if cmd.Flags().Changed("budget") {
		req.Budget = types.TokenBudget(flags.budget)
	}

	res, err := run(ctx, p.Service, req)
	if err != nil {
		return err
	}

	if err := format.Render(cmd.OutOrStdout(), res, f); err != nil {
		return err
	}
	if res.Ambiguous != nil {
		return fmt.Errorf("ambiguous symbol %q", res.Ambiguous.Token)
	}
	return nil
}

func readDiff(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read diff: %w", err)
	}
	return data, nil
}
