// Package main is the entry point of the cachewarm command.
package main

import "github.com/sarchlab/cachewarm/cachewarm/cmd"

func main() {
	cmd.Execute()
}
