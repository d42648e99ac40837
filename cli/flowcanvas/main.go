package main

import (
	"os"

	flowcanvascmder "github.com/flowcanvas/flowcanvas/cmd/flowcanvas"
)

func main() {
	cmd := flowcanvascmder.NewFlowcanvasCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
