package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxpack/internal/project"
)

var indexProject, indexLanguage string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the index snapshot and print statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Open(cmd.Context(), indexProject, project.Options{
			Language: indexLanguage,
			NoStore:  true,
			Logger:   newLogger(),
		})
		if err != nil {
			return err
		}
		defer p.Close()

		stats := p.Index.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Project:  %s\n", p.Root)
		fmt.Fprintf(out, "Language: %s\n", p.Index.Language())
		fmt.Fprintf(out, "Cached:   %v\n", p.CacheHit)
		fmt.Fprintf(out, "Files:    %d indexed, %d failed\n", stats.FilesIndexed, stats.FilesFailed)
		fmt.Fprintf(out, "Symbols:  %d\n", stats.SymbolsExtracted)
		fmt.Fprintf(out, "Edges:    %d resolved, %d calls dropped\n", stats.EdgesResolved, stats.CallsDropped)
		fmt.Fprintf(out, "Duration: %s\n", stats.Duration)
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVarP(&indexProject, "project", "p", ".", "project root")
	indexCmd.Flags().StringVarP(&indexLanguage, "language", "l", "", "go, python or auto")
	rootCmd.AddCommand(indexCmd)
}
