package main

import (
	"os"

	"github.com/AlfredBerg/accom-crawler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
