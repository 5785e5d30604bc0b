package main

import (
	"fiatbridge/internal/cli"
)

func main() {
	cli.Execute()
}
