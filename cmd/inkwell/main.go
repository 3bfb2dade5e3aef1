// Command inkwell is the command line front end of the inkwell workbench.
package main

import (
	"os"

	"github.com/roach88/inkwell/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
