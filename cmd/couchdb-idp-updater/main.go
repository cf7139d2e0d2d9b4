package main

import (
	"os"

	"github.com/beyonddemise/couchdb-idp-updater/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
