package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

func newTunnelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tunnel <PORT>",
		Short: "Tunnel localhost:<port> through a free service",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			_, err := parsePort(args[0])
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := parsePort(args[0])
			p, err := opts.provisioner()
			if err != nil {
				return err
			}

			ctx, stop := tunnelContext(cmd.Context())
			defer stop()
			return p.Tunnel(ctx, port)
		},
	}
}

// tunnelContext detaches from the interrupt-cancelled parent. Ctrl-C reaches
// the ssh client through the terminal's foreground group and only ends that
// attempt; SIGTERM still stops the whole sequence.
func tunnelContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.WithoutCancel(parent), syscall.SIGTERM)
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q: must be between 1 and 65535", s)
	}
	return port, nil
}
