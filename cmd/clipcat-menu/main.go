// Command clipcat-menu pipes a numbered clipboard history list to an
// external selection menu (rofi/dmenu/fzf-style, chosen with --menu) and
// marks whichever entry the user picked back onto the live clipboard.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
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
	menuCommand string
	previewLen  int
	kind        int
)

var rootCmd = &cobra.Command{
	Use:   "clipcat-menu",
	Short: "pick a clipboard history entry through an external menu and restore it",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "path to clipcatd's socket (default from platform config)")
	rootCmd.Flags().StringVar(&accessToken, "token", os.Getenv("CLIPCAT_ACCESS_TOKEN"), "bearer token, if clipcatd requires one")
	rootCmd.Flags().StringVar(&menuCommand, "menu", "rofi -dmenu", "menu command reading lines on stdin, writing the chosen line on stdout")
	rootCmd.Flags().IntVar(&previewLen, "preview-length", 120, "maximum preview length per line")
	rootCmd.Flags().IntVar(&kind, "kind", int(types.Clipboard), "clipboard kind to restore the selection onto")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

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

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := newClient()
	if err != nil {
		return err
	}

	var metas []types.ClipEntryMetadata
	if err := client.Call(ctx, localsock.OpList, map[string]int{"preview_length": previewLen}, &metas); err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	if len(metas) == 0 {
		return fmt.Errorf("clipcat-menu: history is empty")
	}

	byLine := make(map[string]uint64, len(metas))
	var lines []string
	for _, m := range metas {
		line := fmt.Sprintf("%d: %s", m.ID, strings.ReplaceAll(m.PreviewString, "\n", " "))
		byLine[line] = m.ID
		lines = append(lines, line)
	}

	selected, err := pickLine(lines)
	if err != nil {
		return err
	}
	if selected == "" {
		return nil
	}

	id, ok := byLine[selected]
	if !ok {
		id, err = strconv.ParseUint(strings.SplitN(selected, ":", 2)[0], 10, 64)
		if err != nil {
			return fmt.Errorf("clipcat-menu: could not resolve selection %q", selected)
		}
	}

	req := map[string]interface{}{"id": id, "kind": types.ClipboardKind(kind)}
	if err := client.Call(ctx, localsock.OpMark, req, nil); err != nil {
		return fmt.Errorf("mark entry %d: %w", id, err)
	}
	return nil
}

func pickLine(lines []string) (string, error) {
	parts := strings.Fields(menuCommand)
	if len(parts) == 0 {
		return "", fmt.Errorf("clipcat-menu: empty --menu command")
	}

	c := exec.Command(parts[0], parts[1:]...)
	c.Stderr = os.Stderr
	stdin, err := c.StdinPipe()
	if err != nil {
		return "", err
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return "", err
	}

	if err := c.Start(); err != nil {
		return "", fmt.Errorf("clipcat-menu: start menu command: %w", err)
	}

	go func() {
		defer stdin.Close()
		for _, line := range lines {
			fmt.Fprintln(stdin, line)
		}
	}()

	scanner := bufio.NewScanner(stdout)
	var result string
	if scanner.Scan() {
		result = scanner.Text()
	}

	if err := c.Wait(); err != nil {
		if result == "" {
			return "", nil
		}
	}
	return strings.TrimSpace(result), nil
}
