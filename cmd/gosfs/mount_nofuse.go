//go:build !fuse

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mount <image> <mountpoint>",
		Short: "Mount a GOSFS volume via FUSE (unavailable: built without -tags fuse)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("gosfs: built without FUSE support; rebuild with -tags fuse")
		},
	}
}
