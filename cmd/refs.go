package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"quillhaven/quill/internal/refgraph"
)

var (
	refsUser int64
	refsTopN int
	refsJSON bool
)

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "Analyze the quote-reference graph: components, cycles, dangling refs",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		nodes, err := d.ListNodes(cmd.Context(), refsUser, 0, 0)
		if err != nil {
			return fmt.Errorf("listing nodes: %w", err)
		}
		texts := make(map[int64]string, len(nodes))
		for _, n := range nodes {
			texts[n.ID] = n.Text
		}

		report := refgraph.Analyze(refgraph.FromTexts(texts), refsTopN)

		if refsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printRefsHumanReadable(report)
		return nil
	},
}

func init() {
	refsCmd.Flags().Int64Var(&refsUser, "user", 0, "Owner user ID (required)")
	refsCmd.Flags().IntVar(&refsTopN, "top", 10, "Max most-quoted nodes to show")
	refsCmd.Flags().BoolVar(&refsJSON, "json", false, "JSON output")
	refsCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(refsCmd)
}

func printRefsHumanReadable(report *refgraph.Report) {
	fmt.Printf("Nodes: %d  References: %d  Components: %d\n",
		report.TotalNodes, report.TotalRefs, report.NumComponents)

	if len(report.Dangling) > 0 {
		fmt.Printf("\nDangling references (%d):\n", len(report.Dangling))
		for _, r := range report.Dangling {
			fmt.Printf("  %d -> %d (target missing)\n", r.Source, r.Target)
		}
	}

	if len(report.SelfQuotes) > 0 {
		fmt.Printf("\nSelf-quoting nodes: %v\n", report.SelfQuotes)
	}

	if len(report.Cycles) > 0 {
		fmt.Printf("\nReference cycles (%d):\n", len(report.Cycles))
		for _, c := range report.Cycles {
			fmt.Print("  ")
			for i, id := range c {
				if i > 0 {
					fmt.Print(" -> ")
				}
				fmt.Printf("%d", id)
			}
			fmt.Printf(" -> %d\n", c[0])
		}
	}

	if len(report.MostQuoted) > 0 {
		fmt.Println("\nMost quoted:")
		for i, q := range report.MostQuoted {
			fmt.Printf("  %2d. #%d quoted %d time(s)\n", i+1, q.ID, q.InDegree)
		}
	}
}
