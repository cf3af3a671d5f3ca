//go:build fuse

package main

import (
	"github.com/spf13/cobra"

	"github.com/gosfs/gosfs"
)

func newMountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mount <image> <mountpoint>",
		Short: "Mount a GOSFS volume via FUSE (requires a build with -tags fuse)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openMount(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			srv, err := gosfs.MountFUSE(m, args[1])
			if err != nil {
				return err
			}
			srv.Wait()
			return nil
		},
	}
}
