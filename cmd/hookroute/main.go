package main

import "github.com/ppiankov/hookroute/internal/cli"

func main() {
	cli.Execute()
}
