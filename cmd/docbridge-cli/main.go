package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dgallion1/docbridge/internal/client"
	"github.com/dgallion1/docbridge/internal/errs"
)

const appName = "docbridge-cli"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	switch cmd {
	case "call":
		os.Exit(cmdCall(ctx, os.Args[2:]))
	case "tools":
		os.Exit(cmdTools(ctx, os.Args[2:]))
	case "upload":
		os.Exit(cmdUpload(ctx, os.Args[2:]))
	case "health":
		os.Exit(cmdHealth(ctx, os.Args[2:]))
	case "shell":
		os.Exit(cmdShell(ctx, os.Args[2:]))
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`Usage:
  %[1]s call <tool> [key=value ...] [-args '{...}']   Invoke a tool.
  %[1]s tools                                         List tools.
  %[1]s upload <file>                                 Upload and open a document.
  %[1]s health                                        Check the server.
  %[1]s shell                                         Interactive prompt: <tool> key=value ...

Common flags: -url (DOCBRIDGE_URL), -key (DOCBRIDGE_API_KEY), -retries.
Values in key=value pairs are parsed as JSON when possible, e.g. count=5 before=true.
`, appName)
}

type common struct {
	url     *string
	key     *string
	retries *int
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		url:     fs.String("url", envOr("DOCBRIDGE_URL", "http://localhost:8090"), "server base URL"),
		key:     fs.String("key", os.Getenv("DOCBRIDGE_API_KEY"), "API key"),
		retries: fs.Int("retries", client.MaxRetries, "retries for busy/timeout/unavailable responses"),
	}
}

func (c common) client() *client.Client {
	return client.NewClient(strings.TrimRight(*c.url, "/"), *c.key).WithRetries(*c.retries)
}

func cmdCall(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	cf := commonFlags(fs)
	raw := fs.String("args", "", "arguments as a JSON object")
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "%s: call needs a tool name\n", appName)
		return 2
	}
	tool := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	toolArgs := map[string]any{}
	if *raw != "" {
		if err := json.Unmarshal([]byte(*raw), &toolArgs); err != nil {
			fmt.Fprintf(os.Stderr, "%s: -args: %v\n", appName, err)
			return 2
		}
	}
	for _, kv := range fs.Args() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: expected key=value, got %q\n", appName, kv)
			return 2
		}
		toolArgs[k] = parseValue(v)
	}

	res, err := cf.client().Call(ctx, tool, toolArgs)
	if err != nil {
		return fail(err)
	}
	return printJSON(res)
}

func cmdTools(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	cf := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	list, err := cf.client().Tools(ctx)
	if err != nil {
		return fail(err)
	}
	for _, t := range list {
		fmt.Printf("%-26s %s\n", t.Name, t.Description)
		for _, p := range t.Params {
			req := ""
			if p.Required {
				req = " (required)"
			}
			fmt.Printf("    %-20s %-8s %s%s\n", p.Name, p.Type, p.Description, req)
		}
	}
	return 0
}

func cmdUpload(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	cf := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "%s: upload needs exactly one file\n", appName)
		return 2
	}
	res, err := cf.client().Upload(ctx, fs.Arg(0))
	if err != nil {
		return fail(err)
	}
	return printJSON(res)
}

func cmdHealth(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	cf := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := cf.client().Health(ctx); err != nil {
		return fail(err)
	}
	fmt.Println("ok")
	return 0
}

// parseValue reads v as JSON (numbers, booleans, arrays, objects) and falls
// back to the raw string.
func parseValue(v string) any {
	var out any
	if err := json.Unmarshal([]byte(v), &out); err == nil {
		return out
	}
	return v
}

func printJSON(raw json.RawMessage) int {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return 0
	}
	fmt.Println(buf.String())
	return 0
}

func fail(err error) int {
	if e, ok := errs.As(err); ok {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", appName, e.Kind, e.Message)
	} else {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
	}
	return 1
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
