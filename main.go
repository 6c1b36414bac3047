package main

import "github.com/grove-sh/grove/cmd"

func main() {
	cmd.Execute()
}
