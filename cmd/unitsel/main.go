// Package main is the entry point for the unitsel CLI.
//
// A .env file in the working directory, if present, is loaded before the
// commands are built so UNITSEL_DB can come from it.
package main

import (
	"github.com/joho/godotenv"

	"github.com/roach88/unitsel/internal/cli"
)

func main() {
	_ = godotenv.Load()

	cli.Execute(cli.NewRootCommand())
}
