package main

import "github.com/velia-labs/settler/internal/cli"

func main() {
	cli.Execute()
}
