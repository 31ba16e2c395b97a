package main

import (
	"os"

	"github.com/eleven-am/tabq/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
