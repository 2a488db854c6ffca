package main

import (
	"os"

	"github.com/nestwatch/nestwatch/reporterservice"
)

func main() {
	if err := reporterservice.Run(); err != nil {
		os.Exit(1)
	}
}
