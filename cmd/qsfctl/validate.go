package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/qsf-go/qsf/internal/config"
)

var requiredKeys = []string{"start_type", "start_name", "start_file", "max_ipc_msg_size"}

var validateCmd = &cobra.Command{
	Use:   "validate <config_path>",
	Short: "Evaluate a config script and report the keys it produces",
	Long: `Evaluate a config script exactly as the framework's entry point
would, then list every key it binds and check for the keys the core
requires (start_type, start_name, start_file, max_ipc_msg_size).

This never starts the router or registry; it only exercises
internal/config's initialize/get surface.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

	store := config.New()
	if err := store.Initialize(path); err != nil {
		return fmt.Errorf("failed to evaluate %s: %w", path, err)
	}
	defer store.Release()

	keys := store.Keys()
	sort.Strings(keys)

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d keys\n", path, len(keys))
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", k, store.Get(k))
	}

	var missing []string
	for _, k := range requiredKeys {
		if store.Get(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required keys: %v", missing)
	}

	if store.GetInt("max_ipc_msg_size") <= 0 {
		return fmt.Errorf("max_ipc_msg_size must be a positive integer")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "OK: all required keys present")
	return nil
}
