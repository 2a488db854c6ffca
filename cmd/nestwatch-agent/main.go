package main

import (
	"os"

	"github.com/nestwatch/nestwatch/agentservice"
)

func main() {
	if err := agentservice.Run(); err != nil {
		os.Exit(1)
	}
}
