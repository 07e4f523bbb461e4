package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/searchktools/static-server/app"
	"github.com/searchktools/static-server/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args, os.Environ(), os.Stderr)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "static-server: %v\n", err)
		return 1
	}

	application, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "static-server: %v\n", err)
		return 1
	}

	if err := application.Run(); err != nil {
		return 1
	}
	return 0
}
