package main

import "github.com/notargets/turbflux/cmd"

func main() {
	cmd.Execute()
}
