package main

import (
	"github.com/renderguard/renderguard/internal/cli"
)

func main() {
	cli.Execute()
}
