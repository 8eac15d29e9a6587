// gadugi-test runs YAML scenarios against terminal applications.
package main

import (
	"os"

	"github.com/rysweet/gadugi-agentic-test-sub004/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
