// Command nanogate is the entry point for the gateway CLI: onboarding,
// interactive agent access, the long-running gateway process, and
// inspection subcommands for the queue, scheduler, bindings, sessions, and
// personas.
package main

import "github.com/nanogate/nanogate/cmd"

func main() {
	cmd.Execute()
}
