package main

import (
	"os"
	"vmigrate/cmd"
)

func main() {
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}
	cmd.Execute()
}
