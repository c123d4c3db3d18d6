package cli

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragqa/internal/envconv"
	"ragqa/internal/tui"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <documents.json>",
		Short: `Send a {"documents": [...]} file to a running server`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := tui.CheckDocuments(string(raw)); err != nil {
				return err
			}
			resp, err := opts.client().IngestRaw(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Success. Documents: %d, Chunks: %d\n",
				resp.IngestedDocuments, resp.IngestedChunks)
			return nil
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a running server a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var k *int
			if cmd.Flags().Changed("top-k") {
				k = &topK
			}
			resp, err := opts.client().Ask(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Answer)
			if len(resp.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
			}
			for _, s := range resp.Sources {
				fmt.Fprintf(out, "  - %s (%s)\n", s.Title, s.DocID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 3, "Number of chunks to retrieve (1-10)")
	return cmd
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse a running server from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := tui.New(cmd.Context(), opts.client())
			_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}

func newConvertEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert-env <env.json>",
		Short: "Rewrite a legacy {Parameters:{...}} env file into the per-function mapping",
		Args:  cobra.ExactArgs(1),
		// no config or logger needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := envconv.ConvertFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res == envconv.ResultUnchanged {
				fmt.Fprintln(out, "env file already has the per-function mapping. No changes made.")
				return nil
			}
			fmt.Fprintln(out, "Converted env file from {Parameters:{...}} to AskFunction/IngestFunction/AskFunctionPython/IngestFunctionPython.")
			return nil
		},
	}
}
