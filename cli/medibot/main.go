package main

import (
	"os"

	"github.com/joho/godotenv"

	medibotcmder "github.com/papercomputeco/medibot/cmd/medibot"
)

func main() {
	// API keys may live in a local .env; a missing file is not an error.
	_ = godotenv.Load()

	cmd := medibotcmder.NewMedibotCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
