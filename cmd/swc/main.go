package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"swc/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if services.IsUserFixable(err) {
				fmt.Fprintln(os.Stderr, "hint: review the configuration with `swc config show`")
			}
		}
		os.Exit(1)
	}
}

// exitCodeError carries a non-zero process status whose cause has already
// been reported to the user.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
