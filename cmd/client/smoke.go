package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

var smokeTimeout time.Duration

// smokeCmd runs one scripted session against a live server and fails on the first
// unexpected reply.
var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Register, log in, post, edit and delete one message",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), smokeTimeout)
		defer cancel()
		return smoke(ctx)
	},
}

func init() {
	rootCmd.AddCommand(smokeCmd)
	smokeCmd.Flags().DurationVar(&smokeTimeout, "timeout", 5*time.Second, "total timeout for the run")
}

func smoke(ctx context.Context) error {
	conn, err := dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	user := "smoke-" + uuid.NewString()[:8]
	const pass = "smoke-pass"

	step := func(send string, check func(string) bool) (string, error) {
		if err := conn.WriteLine(ctx, send); err != nil {
			return "", fmt.Errorf("send %q: %w", send, err)
		}
		reply, err := conn.ReadLine(ctx)
		if err != nil {
			return "", fmt.Errorf("read reply to %q: %w", send, err)
		}
		fmt.Fprintf(os.Stdout, "> %s\n< %s\n", send, reply)
		if !check(reply) {
			return reply, fmt.Errorf("unexpected reply to %q: %q", send, reply)
		}
		return reply, nil
	}
	is := func(want string) func(string) bool {
		return func(got string) bool { return got == want }
	}

	if _, err := step(proto.EncodeRegister(user, pass), is(proto.ReplySuccess)); err != nil {
		return err
	}
	if _, err := step(proto.EncodeLogin(user, pass), is(proto.ReplySuccess)); err != nil {
		return err
	}

	posted, err := step(proto.EncodeMessage(user, "hello from smoke test"), func(got string) bool {
		return strings.HasPrefix(got, user+": [ID: ")
	})
	if err != nil {
		return err
	}
	var id int64
	if _, err := fmt.Sscanf(strings.TrimPrefix(posted, user+": "), "[ID: %d]", &id); err != nil {
		return fmt.Errorf("parse message id from %q: %w", posted, err)
	}

	if _, err := step(proto.EncodeEdit(user, id, "edited by smoke test"), is(proto.EditedEvent(id, "edited by smoke test"))); err != nil {
		return err
	}
	if _, err := step(proto.EncodeDelete(user, id), is(proto.DeletedEvent(id))); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "smoke test passed")
	return nil
}
