package main

import "github.com/vaoffenders/offender-census/internal/cli"

func main() {
	cli.Execute()
}
