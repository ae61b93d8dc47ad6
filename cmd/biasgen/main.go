package main

import (
	_ "time/tzdata"

	"premarket-bias/internal/cli"
)

func main() {
	cli.Execute()
}
