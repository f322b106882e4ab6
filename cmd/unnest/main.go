// Package main provides the unnest CLI.
package main

import "github.com/leapstack-labs/unnest/internal/cli"

func main() {
	cli.Execute()
}
