package main

import "oscbridge/cmd/oscbridge/command"

func main() {
	command.Execute()
}
