// Command substrait-inspect explains, converts and serves serialized query plans.
package main

import (
	"fmt"
	"os"

	"github.com/hugr-lab/substrait-go/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
