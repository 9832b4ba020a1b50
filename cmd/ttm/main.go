package main

import "github.com/Heavybullets8/TT-Migration/internal/cli"

func main() {
	cli.Execute()
}
