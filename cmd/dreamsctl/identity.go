package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIdentityCmd(a *app) *cobra.Command {
	identityCmd := &cobra.Command{Use: "identity", Short: "Local identity attached to memory writes"}

	identityCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the local identity, creating it on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.identity.GetOrCreate()
			if id == "" {
				id = "(anonymous)"
			}
			_, _ = fmt.Fprintln(a.out, id)
			return nil
		},
	})

	identityCmd.AddCommand(&cobra.Command{
		Use:   "rotate",
		Short: "Replace the local identity with a fresh one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.identity.Rotate()
			if id == "" {
				return fmt.Errorf("identity could not be persisted")
			}
			_, _ = fmt.Fprintln(a.out, id)
			return nil
		},
	})

	return identityCmd
}
