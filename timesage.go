package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	cli "github.com/timesage/timesage/cmd/timesage"
	"github.com/timesage/timesage/internal/config"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	path := os.Getenv("TIMESAGE_CONFIG")
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".timesage", "config.yaml")
		}
	}

	c, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cli.SetupRootCmd(&c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
