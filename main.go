package main

import "github.com/sw33tLie/gvmerge/cmd"

func main() {
	cmd.Execute()
}
