// Command gosfs is a CLI for creating, inspecting, and mounting GOSFS
// volumes. Adapted from the teacher's cmd/sqfs (main.go in the original),
// which dispatched on os.Args by hand; gosfs instead uses cobra for
// subcommand parsing and viper for configuration, following the pattern
// gcsfuse's command layer uses for its own mount tool (SPEC_FULL.md
// component L).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gosfs/gosfs"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gosfs",
		Short: "Create, inspect, and mount GOSFS volumes",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.gosfs.yaml)")
	cobra.OnInitialize(initConfig)

	root.AddCommand(
		newFormatCmd(),
		newLsCmd(),
		newCatCmd(),
		newStatCmd(),
		newMkdirCmd(),
		newRmCmd(),
		newExportCmd(),
		newImportCmd(),
	)
	root.AddCommand(newMountCmd())
	return root
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".gosfs")
	}
	viper.SetEnvPrefix("GOSFS")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func defaultCodec() string {
	if c := viper.GetString("codec"); c != "" {
		return c
	}
	return "gzip"
}

func newFormatCmd() *cobra.Command {
	var sectors uint64
	cmd := &cobra.Command{
		Use:   "format <image>",
		Short: "Create a new GOSFS volume image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := gosfs.OpenFileDevice(args[0], sectors, true)
			if err != nil {
				return err
			}
			defer dev.Close()

			total := sectors / gosfs.SectorsPerBlock
			m, err := gosfs.Format(dev, total)
			if err != nil {
				return err
			}
			return m.Close()
		},
	}
	cmd.Flags().Uint64Var(&sectors, "sectors", 20480, "number of device sectors")
	return cmd
}

func openMount(image string) (*gosfs.Mount, func() error, error) {
	dev, err := gosfs.OpenFileDevice(image, 0, false)
	if err != nil {
		return nil, nil, err
	}
	m, err := gosfs.MountDevice(dev)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return m, m.Close, nil
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image> [path]",
		Short: "List a directory's entries",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) > 1 {
				path = args[1]
			}
			m, closeFn, err := openMount(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			dh, err := m.OpenDir(path)
			if err != nil {
				return err
			}
			for {
				e, err := dh.ReadEntry()
				if err == gosfs.ErrNoMoreEntries {
					break
				}
				if err != nil {
					return err
				}
				info, err := m.Stat(joinPath(path, e.Name))
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n", e.Name)
					continue
				}
				kind := "-"
				if info.IsDir {
					kind = "d"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %8d %s\n", kind, info.Size, e.Name)
			}
			return nil
		},
	}
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <image> <path>",
		Short: "Print a file's contents to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openMount(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			f, err := m.Open(args[1], gosfs.FlagRead)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(cmd.OutOrStdout(), &fileReader{f})
			return err
		},
	}
}

// fileReader adapts *gosfs.File to io.Reader without pulling io.Copy's
// special-casing of io.ReaderFrom/WriterTo into *gosfs.File itself.
type fileReader struct{ f *gosfs.File }

func (r *fileReader) Read(p []byte) (int, error) { return r.f.Read(p) }

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <image> <path>",
		Short: "Print a path's metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openMount(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			info, err := m.Stat(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inode: %s\nsize: %d\nisDirectory: %v\n",
				info.Inode, info.Size, info.IsDir)
			return nil
		},
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <image> <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openMount(args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			return m.Mkdir(args[1])
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <image> <path>",
		Short: "Delete a file or empty directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openMount(args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			return m.Delete(args[1])
		},
	}
}

func newExportCmd() *cobra.Command {
	var codec string
	cmd := &cobra.Command{
		Use:   "export <image> <archive>",
		Short: "Export a volume image to a compressed archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := openMount(args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			if !cmd.Flags().Changed("codec") {
				codec = defaultCodec()
			}
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()
			return m.Export(out, codec)
		},
	}
	cmd.Flags().StringVar(&codec, "codec", defaultCodec(), "archive codec (gzip, xz, zstd)")
	return cmd
}

func newImportCmd() *cobra.Command {
	var codec string
	var sectors uint64
	cmd := &cobra.Command{
		Use:   "import <archive> <image>",
		Short: "Import a compressed archive into a new volume image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			if !cmd.Flags().Changed("codec") {
				codec = defaultCodec()
			}
			dev, err := gosfs.OpenFileDevice(args[1], sectors, true)
			if err != nil {
				return err
			}
			m, err := gosfs.Import(dev, in, codec)
			if err != nil {
				dev.Close()
				return err
			}
			return m.Close()
		},
	}
	cmd.Flags().StringVar(&codec, "codec", defaultCodec(), "archive codec (gzip, xz, zstd)")
	cmd.Flags().Uint64Var(&sectors, "sectors", 20480, "number of device sectors in the restored image")
	return cmd
}
