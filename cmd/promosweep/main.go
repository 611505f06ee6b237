package main

import "promosweep/internal/cli"

func main() {
	cli.Execute()
}
