// Command bridgectl inspects binding metadata and drives the object bridge
// against the in-process sim runtime.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	var (
		bindings    = flag.String("bindings", "", "Binding metadata file (default: built-in sim toolkit)")
		list        = flag.Bool("list", false, "List classes, operations, properties and events, then exit")
		demo        = flag.Bool("demo", false, "Run the managed subclass and event walkthrough")
		emit        = flag.String("emit", "", "Subscribe to an event on a fresh object, trigger it and print the payload")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if !*list && !*demo && *emit == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: bridgectl -list [-bindings file.toml|yaml|json]")
		fmt.Fprintln(os.Stderr, "       bridgectl -demo [-v]")
		fmt.Fprintln(os.Stderr, "       bridgectl -emit size-changed [-v]")
		fmt.Fprintln(os.Stderr, "       bridgectl -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log := newLogger(*verbose)
	defer func() { _ = log.Sync() }()

	var err error
	switch {
	case *list:
		err = runList(os.Stdout, *bindings)
	case *demo:
		err = runDemo(os.Stdout, log)
	default:
		err = runEmit(os.Stdout, log, *emit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger returns a development logger when verbose, otherwise a
// production logger that only reports warnings and errors.
func newLogger(verbose bool) *zap.Logger {
	if verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			return l
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
