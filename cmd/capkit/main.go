package main

import "github.com/reglet-dev/capkit/internal/cli"

var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
