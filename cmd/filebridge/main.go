package main

import (
	"os"

	"github.com/ppipada/filebridge-go/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
