package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/fulltext"
)

func newQueryCmd() *cobra.Command {
	var (
		representation string
		depth          int
		bounded        bool
		limit          int
	)
	cmd := &cobra.Command{
		Use:   "query <corpus.tsv> <text>",
		Short: "Index a key<TAB>text corpus and print ranked matches for text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repr, err := indexer.ParseRepresentation(representation)
			if err != nil {
				return err
			}
			if depth < 1 {
				return fmt.Errorf("--depth must be positive, got %d", depth)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			entries, err := readCorpus(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			idx := buildIndex(repr, depth, entries, bounded)
			var matches []fulltext.Match[string]
			if bounded {
				matches = idx.ScoreBounded(args[1])
			} else {
				matches = idx.Score(args[1])
			}
			if limit > 0 && len(matches) > limit {
				matches = matches[:limit]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tKEY")
			for _, m := range matches {
				fmt.Fprintf(tw, "%d\t%s\n", m.Score, m.Key)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&representation, "representation", string(indexer.Inverted), "index layout: inverted or merged")
	cmd.Flags().IntVar(&depth, "depth", 6, "gram depth")
	cmd.Flags().BoolVar(&bounded, "bounded", false, "index and query with start/end markers")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum matches to print; 0 prints all")
	return cmd
}

func buildIndex(repr indexer.Representation, depth int, entries []corpusEntry, bounded bool) fulltext.Index[string] {
	var idx fulltext.Index[string]
	if repr == indexer.Merged {
		idx = fulltext.NewMerged[string](depth)
	} else {
		idx = fulltext.NewInverted[string](depth)
	}
	for _, e := range entries {
		if bounded {
			idx.InsertBounded(e.Key, e.Text)
		} else {
			idx.Insert(e.Key, e.Text)
		}
	}
	return idx
}
