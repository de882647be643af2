// Command signin serves the email/password sign-in form.
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
