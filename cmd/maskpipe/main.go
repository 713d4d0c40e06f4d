package main

import "github.com/maskpipe/maskpipe/cmd/maskpipe/commands"

func main() {
	commands.Execute()
}
