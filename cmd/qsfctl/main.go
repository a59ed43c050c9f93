// Command qsfctl is an operator CLI for validating a config script
// offline and listing the keys it would produce, without starting the
// router or registry (supplements spec.md §6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "qsfctl: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qsfctl",
	Short: "Operator tooling for the framework's config store",
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
