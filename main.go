package main

import (
	"github.com/bluwireless/blade/cmd"
)

func main() {
	cmd.Execute()
}
