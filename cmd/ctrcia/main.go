package main

import "github.com/hax0kartik/ctrcia/internal/cli"

func main() {
	cli.Execute()
}
