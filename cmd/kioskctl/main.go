package main

import (
	"os"

	"kiosk-go/cmd/kioskctl/tool/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
