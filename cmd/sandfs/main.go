package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	sandlib "github.com/AnishMulay/sandfs/clients/library"
	grpccomm "github.com/AnishMulay/sandfs/internal/communication/grpc"
	"github.com/AnishMulay/sandfs/internal/log_service"
	"github.com/AnishMulay/sandfs/internal/log_service/console"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "sandfs",
		Usage: "a command line interface to a sandfs server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "address of the sandfs server",
				Value:   "127.0.0.1:9001",
				EnvVars: []string{"SANDFS_SERVER"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log transport activity to stderr",
			},
		},
		Commands: commands(),
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func withClient(f func(client *sandlib.SandfsClient, ctx *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		level := log_service.ErrorLevel
		if ctx.Bool("verbose") {
			level = log_service.DebugLevel
		}
		comm := grpccomm.NewGRPCCommunicator("", console.NewConsoleLogService(os.Stderr, "sandfs-cli", level))
		defer comm.Stop()

		return f(sandlib.NewSandfsClient(ctx.String("server"), comm), ctx)
	}
}

func requireArgs(ctx *cli.Context, n int) error {
	if ctx.NArg() < n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", ctx.Command.Name, n, ctx.NArg())
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commands() []*cli.Command {
	return []*cli.Command{{
		Name:      "mkdir",
		Usage:     "create a directory",
		ArgsUsage: "PATH",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			if err := requireArgs(ctx, 1); err != nil {
				return err
			}
			return client.Mkdir(ctx.Context, ctx.Args().First())
		}),
	}, {
		Name:      "touch",
		Usage:     "create an empty file",
		ArgsUsage: "PATH",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			if err := requireArgs(ctx, 1); err != nil {
				return err
			}
			return client.CreateFile(ctx.Context, ctx.Args().First())
		}),
	}, {
		Name:  "write",
		Usage: "write DATA (or stdin when omitted) into a file",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "offset", Aliases: []string{"o"}, Usage: "byte offset to write at"},
		},
		ArgsUsage: "PATH [DATA]",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			if err := requireArgs(ctx, 1); err != nil {
				return err
			}

			var data []byte
			if ctx.NArg() > 1 {
				data = []byte(ctx.Args().Get(1))
			} else {
				var err error
				if data, err = io.ReadAll(os.Stdin); err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
			}

			n, err := client.Write(ctx.Context, ctx.Args().First(), data, ctx.Int64("offset"))
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "wrote %d bytes\n", n)
			return nil
		}),
	}, {
		Name:  "cat",
		Usage: "print file contents",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "offset", Aliases: []string{"o"}, Usage: "byte offset to start at"},
			&cli.IntFlag{Name: "size", Aliases: []string{"n"}, Usage: "bytes to read, whole file when negative", Value: -1},
		},
		ArgsUsage: "PATH",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			if err := requireArgs(ctx, 1); err != nil {
				return err
			}
			path := ctx.Args().First()

			size := ctx.Int("size")
			if size < 0 {
				info, err := client.Stat(ctx.Context, path)
				if err != nil {
					return err
				}
				size = int(info.Size)
			}

			data, err := client.Read(ctx.Context, path, size, ctx.Int64("offset"))
			if err != nil {
				return err
			}
			_, err = ctx.App.Writer.Write(data)
			return err
		}),
	}, {
		Name:      "ls",
		Usage:     "list a directory",
		ArgsUsage: "[PATH]",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			path := "/"
			if ctx.NArg() > 0 {
				path = ctx.Args().First()
			}
			names, err := client.Ls(ctx.Context, path)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(ctx.App.Writer, name)
			}
			return nil
		}),
	}, {
		Name:      "rm",
		Aliases:   []string{"delete"},
		Usage:     "delete a file or directory",
		ArgsUsage: "PATH",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			if err := requireArgs(ctx, 1); err != nil {
				return err
			}
			return client.Delete(ctx.Context, ctx.Args().First())
		}),
	}, {
		Name:      "mv",
		Aliases:   []string{"rename"},
		Usage:     "move an entry",
		ArgsUsage: "SRC DST",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			if err := requireArgs(ctx, 2); err != nil {
				return err
			}
			return client.Rename(ctx.Context, ctx.Args().Get(0), ctx.Args().Get(1))
		}),
	}, {
		Name:      "stat",
		Usage:     "show attributes of an entry",
		ArgsUsage: "PATH",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			if err := requireArgs(ctx, 1); err != nil {
				return err
			}
			info, err := client.Stat(ctx.Context, ctx.Args().First())
			if err != nil {
				return err
			}
			return printJSON(ctx.App.Writer, info)
		}),
	}, {
		Name:  "find",
		Usage: "find entries whose name matches a shell glob",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "file or folder"},
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "directory to search below", Value: "/"},
		},
		ArgsUsage: "PATTERN",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			if err := requireArgs(ctx, 1); err != nil {
				return err
			}
			paths, err := client.Find(ctx.Context, ctx.Args().First(), ctx.String("type"), ctx.String("root"))
			if err != nil {
				return err
			}
			if len(paths) > 0 {
				fmt.Fprintln(ctx.App.Writer, strings.Join(paths, "\n"))
			}
			return nil
		}),
	}, {
		Name:  "df",
		Usage: "show block and inode usage",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			stats, err := client.StatFs(ctx.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "fs %s\nblocks: %d total, %d used, %d free (%d bytes each)\ninodes: %d\n",
				stats.FsID, stats.TotalBlocks, stats.UsedBlocks, stats.FreeBlocks, stats.BlockSize, stats.Inodes)
			return nil
		}),
	}, {
		Name:  "fsck",
		Usage: "run a consistency check",
		Action: withClient(func(client *sandlib.SandfsClient, ctx *cli.Context) error {
			report, err := client.Check(ctx.Context)
			if err != nil {
				return err
			}
			if err := printJSON(ctx.App.Writer, report); err != nil {
				return err
			}
			if !report.Consistent() {
				return cli.Exit("block exclusivity violated", 2)
			}
			return nil
		}),
	}}
}
