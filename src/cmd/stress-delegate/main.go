package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"text-extractor/src/config"
	"text-extractor/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	deadline time.Duration
}

type tally struct {
	ok, busy, failed, absent int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env may move the resident's port range.
	_, _ = config.Load()
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-delegate",
		Short:         "Stress test delegation to a running resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseMode(opts.mode)
			if err != nil {
				return err
			}
			t := runWithOptions(*opts, kind, singleinstance.NewClient(opts.deadline))
			report(cmd.OutOrStdout(), opts.n, t)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "check", "check|extract: request kind to send")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func parseMode(mode string) (singleinstance.Kind, error) {
	switch strings.ToLower(mode) {
	case "check":
		return singleinstance.KindCheck, nil
	case "extract":
		return singleinstance.KindExtract, nil
	}
	return "", fmt.Errorf("unknown mode %q (want check or extract)", mode)
}

// runWithOptions fires n concurrent delegations. All but one extract
// request should come back busy while the first is in flight.
func runWithOptions(opts stressOptions, kind singleinstance.Kind, client singleinstance.Client) tally {
	var wg sync.WaitGroup
	var t tally

	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()

			_, err := client.Delegate(ctx, kind)
			var remote *singleinstance.RemoteError
			switch {
			case err == nil:
				atomic.AddInt32(&t.ok, 1)
			case errors.Is(err, singleinstance.ErrNoResident):
				atomic.AddInt32(&t.absent, 1)
			case errors.As(err, &remote) && strings.Contains(strings.ToLower(remote.Message), "in progress"):
				atomic.AddInt32(&t.busy, 1)
			default:
				atomic.AddInt32(&t.failed, 1)
			}
		}()
	}
	wg.Wait()
	return t
}

func report(out io.Writer, n int, t tally) {
	fmt.Fprintf(out, "launched=%d ok=%d busy=%d err=%d no-resident=%d\n", n, t.ok, t.busy, t.failed, t.absent)
}
