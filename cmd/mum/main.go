// Command mum is the admin CLI for the media service plugin core: it
// manages plugins and configured server instances from the terminal.
package main

import (
	"os"

	_ "github.com/themaluxis/MUM/builtin/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
