package main

import "github.com/spf13/cobra"

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop Mihomo by killing the process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.provisioner()
			if err != nil {
				return err
			}
			return p.Stop()
		},
	}
}
