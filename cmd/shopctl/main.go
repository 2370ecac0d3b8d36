// Command shopctl is the operator tool: catalog seeding, admin password
// hashing and reconciliation reports.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
