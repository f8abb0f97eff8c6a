// fixctl is an operator CLI for the fixengine session daemon: it talks to
// the admin HTTP API to list, inspect, and operate FIX sessions.
package main

import "fixengine/cmd/fixctl/commands"

func main() {
	commands.Execute()
}
