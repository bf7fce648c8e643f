package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/phototools/autotag/cmd"
)

const version = "0.1.0"

func main() {
	root := cmd.NewRootCmd()

	// fang adds completions, manpages and --version, and turns os.Interrupt
	// into context cancellation, which a running session treats as pause.
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
