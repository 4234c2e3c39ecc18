// Package main prints a fresh session signing key.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/rebazzar/internal/platform/config"
	"github.com/louisbranch/rebazzar/internal/tools/sessionkey"
)

func main() {
	cfg, err := sessionkey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.UsageExitf("parse flags: %v", err)
	}
	if err := sessionkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate key: %v", err)
	}
}
