package main

import "github.com/oshokin/quarantine-engine/cmd/quarantine-ctl/cmd"

func main() {
	cmd.Execute()
}
