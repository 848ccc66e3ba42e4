package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"quillhaven/quill/internal/export"
	"quillhaven/quill/internal/quote"
	"quillhaven/quill/internal/store"
	"quillhaven/quill/internal/token"
)

var (
	expUser      int64
	expBudget    int
	expMode      string
	expRender    string
	expAIUse     string
	expAfter     int64
	expBefore    int64
	expTokenizer string
	expJSON      bool
	expVerbose   bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's content forest as a bounded-size document",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		est, err := pickEstimator(expTokenizer)
		if err != nil {
			return err
		}
		mode, err := pickSortMode(expMode)
		if err != nil {
			return err
		}
		render, err := pickRenderMode(expRender)
		if err != nil {
			return err
		}
		if expAIUse != "" && expAIUse != export.AIUsageChat && expAIUse != export.AIUsageTrain {
			return fmt.Errorf("invalid --ai-use %q (want chat or train)", expAIUse)
		}

		logLevel := slog.LevelWarn
		if expVerbose {
			logLevel = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

		exporter := export.NewExporter(
			d,
			store.NewGateway(d, expAIUse),
			d.LookupFor(expUser, expAIUse, est),
			est,
			logger,
		)
		result, err := exporter.Export(cmd.Context(), expUser, export.Options{
			Budget:        expBudget,
			Mode:          mode,
			RenderMode:    render,
			AIUsage:       expAIUse,
			CreatedAfter:  expAfter,
			CreatedBefore: expBefore,
		})
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		if expJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				ExportID   string `json:"export_id"`
				TokenCount int    `json:"token_count"`
				NodeCount  int    `json:"node_count"`
				Latest     int64  `json:"latest_millis"`
				Document   string `json:"document"`
			}{result.ExportID, result.TokenCount, result.NodeCount, result.LatestMillis, result.Document})
		}

		fmt.Print(result.Document)
		fmt.Fprintf(os.Stderr, "\n%d node(s), ~%d tokens\n", result.NodeCount, result.TokenCount)
		return nil
	},
}

func init() {
	exportCmd.Flags().Int64Var(&expUser, "user", 0, "Owner user ID (required)")
	exportCmd.Flags().IntVar(&expBudget, "budget", 0, "Token budget; 0 exports everything")
	exportCmd.Flags().StringVar(&expMode, "mode", "recent", "Truncation direction: recent or chrono")
	exportCmd.Flags().StringVar(&expRender, "render", "machine", "Quote rendering: machine or human")
	exportCmd.Flags().StringVar(&expAIUse, "ai-use", "", "AI-facing export for the given use: chat or train")
	exportCmd.Flags().Int64Var(&expAfter, "after", 0, "Only nodes created after this Unix-millis timestamp")
	exportCmd.Flags().Int64Var(&expBefore, "before", 0, "Only nodes created before this Unix-millis timestamp")
	exportCmd.Flags().StringVar(&expTokenizer, "tokenizer", "heuristic", "Token estimator: heuristic or cl100k")
	exportCmd.Flags().BoolVar(&expJSON, "json", false, "JSON output")
	exportCmd.Flags().BoolVar(&expVerbose, "verbose", false, "Debug logging to stderr")
	exportCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(exportCmd)
}

func pickEstimator(name string) (token.Estimator, error) {
	switch name {
	case "", "heuristic":
		return token.Heuristic{}, nil
	case "cl100k":
		return token.NewTiktoken("cl100k_base")
	}
	return nil, fmt.Errorf("invalid --tokenizer %q (want heuristic or cl100k)", name)
}

func pickSortMode(name string) (export.SortMode, error) {
	switch name {
	case "", "recent":
		return export.NewestFirst, nil
	case "chrono":
		return export.OldestFirst, nil
	}
	return 0, fmt.Errorf("invalid --mode %q (want recent or chrono)", name)
}

func pickRenderMode(name string) (quote.RenderMode, error) {
	switch name {
	case "", "machine":
		return quote.Machine, nil
	case "human":
		return quote.Human, nil
	}
	return 0, fmt.Errorf("invalid --render %q (want machine or human)", name)
}
