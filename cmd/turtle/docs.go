package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/turtle/internal/apidoc"
)

var rawFlag bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Print the script API reference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rawFlag {
			fmt.Fprint(cmd.OutOrStdout(), apidoc.Declarations())
			return nil
		}
		docs, err := apidoc.Load()
		if err != nil {
			return err
		}
		writeDocs(cmd.OutOrStdout(), docs)
		return nil
	},
}

func init() {
	docsCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print the raw declarations")
	rootCmd.AddCommand(docsCmd)
}

// writeDocs renders docs as markdown.
func writeDocs(w io.Writer, docs []apidoc.FunctionDoc) {
	for i, d := range docs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "## `%s`\n\n", d.Signature())
		if desc := strings.TrimSpace(apidoc.Markdown(d.Description)); desc != "" {
			fmt.Fprintln(w, desc)
		}
		if len(d.Params) > 0 {
			fmt.Fprintln(w)
			for _, p := range d.Params {
				fmt.Fprintf(w, "- `%s` (%s): %s\n", p.Name, p.Type, strings.TrimSpace(apidoc.Markdown(p.Description)))
			}
		}
	}
}
