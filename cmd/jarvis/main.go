package main

import "github.com/m4xw311/jarvis/cmd/jarvis/cmd"

func main() {
	cmd.Execute()
}
