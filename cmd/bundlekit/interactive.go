package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

type interactiveCtxKeyType struct{}

var interactiveCtxKey = interactiveCtxKeyType{}

func isInteractiveEnvironment() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func withInteractive(ctx context.Context, interactive bool) context.Context {
	return context.WithValue(ctx, interactiveCtxKey, interactive)
}

func isInteractive(ctx context.Context) bool {
	interactive, ok := ctx.Value(interactiveCtxKey).(bool)
	if !ok {
		return false
	}
	return interactive
}

// readConfigFile reads a configuration document from the named file, or from
// stdin when the name is "-" or empty in a piped (non-interactive) session.
func readConfigFile(ctx context.Context, filename string) ([]byte, string, error) {
	if filename != "" && filename != "-" {
		data, err := os.ReadFile(filename)
		return data, filename, err
	}

	if isInteractive(ctx) {
		return nil, "", fmt.Errorf("no config file provided")
	}

	data, err := io.ReadAll(os.Stdin)
	return data, "<stdin>", err
}
