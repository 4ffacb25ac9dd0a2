package main

import "github.com/oshokin/quarantine-engine/cmd/quarantine-server/cmd"

func main() {
	cmd.Execute()
}
