package main

import "github.com/prismbench/prism/cmd"

func main() {
	cmd.Execute()
}
