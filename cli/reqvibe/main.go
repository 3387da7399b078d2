package main

import (
	"os"

	reqvibecmder "github.com/reqvibe/reqvibe/cmd/reqvibe"
)

func main() {
	cmd := reqvibecmder.NewReqvibeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
