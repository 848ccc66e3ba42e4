package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"quillhaven/quill/internal/quote"
	"quillhaven/quill/internal/store"
)

var (
	resUser   int64
	resDepth  int
	resRender string
	resJSON   bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <node-id>",
	Short: "Expand a node's quote placeholders inline (for building one LLM turn)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node id %q", args[0])
		}

		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		render, err := pickRenderMode(resRender)
		if err != nil {
			return err
		}

		node, err := d.GetNode(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("loading node: %w", err)
		}
		if node == nil || (node.Private && node.OwnerID != resUser) {
			return fmt.Errorf("node not found or not accessible: %d", id)
		}

		resolver := quote.NewResolver(store.NewGateway(d, ""))
		resolved, resolvedIDs, err := resolver.Resolve(cmd.Context(), node.Body, resUser, render, resDepth)
		if err != nil {
			return fmt.Errorf("resolving quotes: %w", err)
		}

		if resJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				NodeID      int64   `json:"node_id"`
				Resolved    string  `json:"resolved"`
				ResolvedIDs []int64 `json:"resolved_ids"`
			}{id, resolved, resolvedIDs})
		}

		fmt.Println(resolved)
		if len(resolvedIDs) > 0 {
			fmt.Fprintf(os.Stderr, "%d quote(s) expanded\n", len(resolvedIDs))
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().Int64Var(&resUser, "user", 0, "Requesting user ID (required)")
	resolveCmd.Flags().IntVar(&resDepth, "depth", quote.DefaultMaxDepth, "Max nesting depth to expand")
	resolveCmd.Flags().StringVar(&resRender, "render", "machine", "Quote rendering: machine or human")
	resolveCmd.Flags().BoolVar(&resJSON, "json", false, "JSON output")
	resolveCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(resolveCmd)
}
