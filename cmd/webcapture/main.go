package main

import "github.com/JakeFAU/webcapture/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
