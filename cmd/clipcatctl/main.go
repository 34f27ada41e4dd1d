// Command clipcatctl is a CLI client for clipcatd, talking over the
// Unix-domain-socket transport.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clipcatd/clipcat/internal/config"
	"github.com/clipcatd/clipcat/internal/rpc/localsock"
	"github.com/clipcatd/clipcat/internal/types"
)

var (
	socketPath  string
	accessToken string
	previewLen  int
)

func newClient() (*localsock.Client, error) {
	if socketPath != "" {
		return localsock.NewClient(socketPath, accessToken), nil
	}
	paths, err := config.GetSystemPaths()
	if err != nil {
		return nil, fmt.Errorf("resolve system paths: %w", err)
	}
	return localsock.NewClient(paths.SocketPath, accessToken), nil
}

var rootCmd = &cobra.Command{
	Use:   "clipcatctl",
	Short: "control clipcatd over its Unix-domain-socket transport",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "path to clipcatd's socket (default from platform config)")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", os.Getenv("CLIPCAT_ACCESS_TOKEN"), "bearer token, if clipcatd requires one")
	rootCmd.AddCommand(
		listCmd(),
		getCmd(),
		insertCmd(),
		markCmd(),
		removeCmd(),
		clearCmd(),
		lengthCmd(),
		watcherCmd(),
		versionCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list clipboard history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			var metas []types.ClipEntryMetadata
			if err := client.Call(context.Background(), localsock.OpList,
				map[string]int{"preview_length": previewLen}, &metas); err != nil {
				return err
			}
			for _, m := range metas {
				fmt.Printf("%d\t%s\t%s\t%s\n", m.ID, m.ClipboardKind, m.Timestamp.Format("2006-01-02 15:04:05"), m.PreviewString)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&previewLen, "preview-length", 80, "maximum preview length")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "print the text content of one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			var entry types.ClipEntry
			if err := client.Call(context.Background(), localsock.OpGet,
				map[string]uint64{"id": id}, &entry); err != nil {
				return err
			}
			if entry.Content.Kind == types.ContentImage {
				fmt.Printf("<image %dx%d>\n", entry.Content.Image.Width, entry.Content.Image.Height)
				return nil
			}
			fmt.Println(entry.Content.Text)
			return nil
		},
	}
}

func insertCmd() *cobra.Command {
	var kind int
	cmd := &cobra.Command{
		Use:   "insert <text>",
		Short: "insert text as a new clipboard entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			req := map[string]interface{}{
				"kind":    types.ClipboardKind(kind),
				"content": types.Content{Kind: types.ContentText, Text: args[0]},
			}
			var entry types.ClipEntry
			if err := client.Call(context.Background(), localsock.OpInsert, req, &entry); err != nil {
				return err
			}
			fmt.Println(entry.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&kind, "kind", int(types.Clipboard), "clipboard kind (0=clipboard, 1=primary, 2=secondary)")
	return cmd
}

func markCmd() *cobra.Command {
	var kind int
	cmd := &cobra.Command{
		Use:   "mark <id>",
		Short: "write a stored entry back onto the live clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			req := map[string]interface{}{"id": id, "kind": types.ClipboardKind(kind)}
			return client.Call(context.Background(), localsock.OpMark, req, nil)
		},
	}
	cmd.Flags().IntVar(&kind, "kind", int(types.Clipboard), "clipboard kind (0=clipboard, 1=primary, 2=secondary)")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id> [id...]",
		Short: "remove one or more entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				id, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return err
				}
				var ok bool
				return client.Call(context.Background(), localsock.OpRemove, map[string]uint64{"id": id}, &ok)
			}
			ids := make([]uint64, len(args))
			for i, a := range args {
				id, err := strconv.ParseUint(a, 10, 64)
				if err != nil {
					return err
				}
				ids[i] = id
			}
			var removed []uint64
			if err := client.Call(context.Background(), localsock.OpBatchRemove, map[string][]uint64{"ids": ids}, &removed); err != nil {
				return err
			}
			fmt.Println(strings.Trim(strings.Join(strings.Fields(fmt.Sprint(removed)), ","), "[]"))
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "remove every entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), localsock.OpClear, nil, nil)
		},
	}
}

func lengthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "length",
		Short: "print the number of retained entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			var n int
			if err := client.Call(context.Background(), localsock.OpLength, nil, &n); err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
}

func watcherCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "watcher", Short: "control the clipboard watcher"}
	cmd.AddCommand(
		&cobra.Command{Use: "enable", RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), localsock.OpWatcherEnable, nil, nil)
		}},
		&cobra.Command{Use: "disable", RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), localsock.OpWatcherDisable, nil, nil)
		}},
		&cobra.Command{Use: "toggle", RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			var state types.WatcherState
			if err := client.Call(context.Background(), localsock.OpWatcherToggle, nil, &state); err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		}},
		&cobra.Command{Use: "status", RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			var state types.WatcherState
			if err := client.Call(context.Background(), localsock.OpWatcherGetState, nil, &state); err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		}},
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print clipcatd's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			var v localsockVersion
			if err := client.Call(context.Background(), localsock.OpGetVersion, nil, &v); err != nil {
				return err
			}
			fmt.Printf("%d.%d.%d\n", v.Major, v.Minor, v.Patch)
			return nil
		},
	}
}

type localsockVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}
