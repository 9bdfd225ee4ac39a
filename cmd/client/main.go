package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var addr string

// drainGrace is how long chat keeps reading after stdin ends.
var drainGrace = 200 * time.Millisecond

var rootCmd = &cobra.Command{
	Use:   "linechat-client",
	Short: "Terminal client for the linechat line protocol",
	Long: `Reads protocol lines from stdin and prints every server line to stdout.

Commands are sent as typed, for example:
  REGISTER alice secret
  LOGIN alice secret
  MESSAGE alice hello everyone
  EDIT alice 1 hello again
  DELETE alice 1`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return chat(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:12345", "server address: host:port for TCP or ws://host:port/ws")
}

func chat(ctx context.Context, in io.Reader, out io.Writer) error {
	conn, err := dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(out, "Connected to %s. Ctrl+C to exit.\n", addr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			line, err := conn.ReadLine(gctx)
			if err != nil {
				if errors.Is(err, io.EOF) || gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("read: %w", err)
			}
			fmt.Fprintln(out, line)
		}
	})

	g.Go(func() error {
		// Closing the connection unblocks the reader once stdin is done.
		defer conn.Close()

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					time.Sleep(drainGrace)
					return nil
				}
				if strings.TrimSpace(line) == "" {
					continue
				}
				if err := conn.WriteLine(gctx, line); err != nil {
					return fmt.Errorf("send: %w", err)
				}
			}
		}
	})

	return g.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "linechat-client: %v\n", err)
		stop()
		os.Exit(1)
	}
}
