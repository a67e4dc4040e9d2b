package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/gram"
)

func newGramsCmd() *cobra.Command {
	var (
		depth   int
		bounded bool
	)
	cmd := &cobra.Command{
		Use:   "grams <text>",
		Short: "Print the sorted gram set of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 1 {
				return fmt.Errorf("--depth must be positive, got %d", depth)
			}
			text := args[0]
			if bounded {
				text = gram.Wrap(text)
			}
			out := cmd.OutOrStdout()
			for _, g := range gram.Generate(text, depth).Sorted() {
				// Quote so the STX/ETX markers are visible.
				fmt.Fprintln(out, strconv.QuoteToASCII(g))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 6, "gram depth; grams are 2..depth+1 codepoints long")
	cmd.Flags().BoolVar(&bounded, "bounded", false, "bracket the text with start/end markers")
	return cmd
}
