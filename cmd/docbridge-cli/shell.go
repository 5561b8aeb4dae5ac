package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
)

const historyFile = ".docbridge_history"

// cmdShell reads "tool key=value ..." lines and runs them against the
// server until EOF or :quit.
func cmdShell(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	cf := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	c := cf.client()

	var names []string
	if list, err := c.Tools(ctx); err == nil {
		for _, t := range list {
			names = append(names, t.Name)
		}
		sort.Strings(names)
	} else {
		fmt.Fprintf(os.Stderr, "%s: tool list unavailable: %v\n", appName, err)
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		if strings.Contains(line, " ") {
			return nil
		}
		var out []string
		for _, n := range names {
			if strings.HasPrefix(n, line) {
				out = append(out, n)
			}
		}
		return out
	})

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt("docbridge> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Println()
			return 0
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if line == ":quit" || line == ":q" {
			return 0
		}

		words, err := splitWords(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			continue
		}
		toolArgs := map[string]any{}
		bad := false
		for _, kv := range words[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				fmt.Fprintf(os.Stderr, "%s: expected key=value, got %q\n", appName, kv)
				bad = true
				break
			}
			toolArgs[k] = parseValue(v)
		}
		if bad {
			continue
		}

		res, err := c.Call(ctx, words[0], toolArgs)
		if err != nil {
			fail(err)
			continue
		}
		printJSON(res)
	}
}

// splitWords splits on spaces, keeping double-quoted runs together, so
// text="two words" stays one argument.
func splitWords(line string) ([]string, error) {
	var words []string
	var cur strings.Builder
	inQuote, escaped, have := false, false, false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
			have = true
		case r == ' ' && !inQuote:
			if have {
				words = append(words, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if have {
		words = append(words, cur.String())
	}
	return words, nil
}
