// Command ecsfsctl is a small command-line front end over package ecsfs,
// for creating, inspecting and poking at filesystem images without writing
// Go code.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arfadev/ecs150fs"
	"github.com/arfadev/ecs150fs/blockdev"
)

var partScheme string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ecsfsctl",
		Short: "ecsfsctl inspects and manipulates ECS150FS filesystem images",
	}
	root.PersistentFlags().StringVar(&partScheme, "partition", "", `partition scheme to look for the image under: "mbr" or "gpt" (default: none, whole file)`)

	root.AddCommand(infoCmd())
	root.AddCommand(lsCmd())
	root.AddCommand(createCmd())
	root.AddCommand(rmCmd())
	root.AddCommand(catCmd())
	root.AddCommand(writeCmd())
	root.AddCommand(formatCmd())
	return root
}

func openDevice(path string) (*blockdev.File, error) {
	var opts []blockdev.Option
	switch partScheme {
	case "":
	case "mbr":
		opts = append(opts, blockdev.WithMBRPartition())
	case "gpt":
		opts = append(opts, blockdev.WithGPTPartition())
	default:
		return nil, fmt.Errorf("unknown --partition value %q", partScheme)
	}
	return blockdev.Open(path, opts...)
}

func withMounted(path string, fn func(*ecsfs.FS) error) error {
	dev, err := openDevice(path)
	if err != nil {
		return err
	}
	var fsys ecsfs.FS
	if err := fsys.Mount(dev); err != nil {
		dev.Close()
		return err
	}
	if err := fn(&fsys); err != nil {
		fsys.Umount()
		return err
	}
	return fsys.Umount()
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>",
		Short: "print superblock layout and occupancy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMounted(args[0], func(fsys *ecsfs.FS) error {
				info, err := fsys.Info()
				if err != nil {
					return err
				}
				fmt.Printf("total blocks:     %d\n", info.TotalBlocks)
				fmt.Printf("fat blocks:       %d\n", info.FATBlocks)
				fmt.Printf("root dir block:   %d\n", info.RootDirBlock)
				fmt.Printf("data start block: %d\n", info.DataStartBlock)
				fmt.Printf("data blocks:      %d\n", info.DataBlockCount)
				fmt.Printf("free fat entries: %d\n", info.FreeFATEntries)
				fmt.Printf("free dir slots:   %d\n", info.FreeDirSlots)
				return nil
			})
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <image>",
		Short: "list files in the root directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMounted(args[0], func(fsys *ecsfs.FS) error {
				entries, err := fsys.Ls()
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Printf("%-16s %8d bytes\n", e.Name, e.Size)
				}
				return nil
			})
		},
	}
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <image> <name>",
		Short: "create an empty file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMounted(args[0], func(fsys *ecsfs.FS) error {
				return fsys.Create(args[1])
			})
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <image> <name>",
		Short: "delete a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMounted(args[0], func(fsys *ecsfs.FS) error {
				return fsys.Delete(args[1])
			})
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <image> <name>",
		Short: "print a file's contents to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMounted(args[0], func(fsys *ecsfs.FS) error {
				fp, err := fsys.OpenFile(args[1])
				if err != nil {
					return err
				}
				defer fp.Close()
				buf := make([]byte, ecsfs.BlockSize)
				for {
					n, err := fp.Read(buf)
					if n > 0 {
						os.Stdout.Write(buf[:n])
					}
					if err != nil {
						break
					}
				}
				return nil
			})
		},
	}
}

func writeCmd() *cobra.Command {
	var offset int64
	cmd := &cobra.Command{
		Use:   "write <image> <name> <local-file>",
		Short: "write a local file's contents into an image file at an offset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			return withMounted(args[0], func(fsys *ecsfs.FS) error {
				fp, err := fsys.OpenFile(args[1])
				if err != nil {
					return err
				}
				defer fp.Close()
				if _, err := fp.Seek(offset, io.SeekStart); err != nil {
					return err
				}
				_, err = fp.Write(data)
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "byte offset to start writing at")
	return cmd
}

func formatCmd() *cobra.Command {
	var blocks int64
	cmd := &cobra.Command{
		Use:   "format <image>",
		Short: "write a fresh, empty filesystem image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// A partition table doesn't exist yet, so open the raw file
			// rather than asking openDevice to go looking for one.
			dev, err := blockdev.Open(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			var scheme ecsfs.PartitionScheme
			switch partScheme {
			case "mbr":
				scheme = ecsfs.SchemeMBR
			case "gpt":
				scheme = ecsfs.SchemeGPT
			}
			if blocks <= 0 {
				blocks = dev.BlockCount() - ecsfs.ReservedBlocks(scheme)
			}
			return ecsfs.Format(dev, blocks, ecsfs.FormatConfig{Scheme: scheme})
		},
	}
	cmd.Flags().Int64Var(&blocks, "blocks", 0, "number of blocks for the filesystem image (default: whole device)")
	return cmd
}
