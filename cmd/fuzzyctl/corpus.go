package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

type corpusEntry struct {
	Key  string
	Text string
}

// readCorpus parses key<TAB>text lines. Blank lines and lines starting with
// '#' are skipped; text may itself contain tabs.
func readCorpus(r io.Reader) ([]corpusEntry, error) {
	var entries []corpusEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		key, text, ok := strings.Cut(raw, "\t")
		if !ok || key == "" {
			return nil, fmt.Errorf("line %d: want key<TAB>text", line)
		}
		entries = append(entries, corpusEntry{Key: key, Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return entries, nil
}
