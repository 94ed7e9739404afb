// Command tokengen mints and inspects the custom identity tokens a page
// exchanges at startup through INITIAL_AUTH_TOKEN.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
