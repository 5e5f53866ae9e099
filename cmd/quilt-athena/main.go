// Command quilt-athena provisions the Athena tables and views that index a
// Quilt bucket.
package main

import (
	"os"

	"quilt-athena/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
