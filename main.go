package main

import (
	"os"

	"github.com/smazurov/reframer/cmd"
	"github.com/smazurov/reframer/internal/logging"
)

func main() {
	err := cmd.NewRootCmd().Execute()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}
