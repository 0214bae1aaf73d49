package main

import "github.com/chukul/capsulectl/cmd"

func main() {
	cmd.Execute()
}
