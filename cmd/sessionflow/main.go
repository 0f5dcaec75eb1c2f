package main

import "sessionflow/internal/cli"

func main() {
	cli.Execute()
}
