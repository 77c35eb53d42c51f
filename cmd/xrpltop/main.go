package main

import "github.com/LeJamon/xrpltop/internal/cli"

func main() {
	cli.Execute()
}
