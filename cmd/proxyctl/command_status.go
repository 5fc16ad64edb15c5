package main

import "github.com/spf13/cobra"

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show status of Mihomo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.provisioner()
			if err != nil {
				return err
			}
			_, err = p.Status(cmd.Context())
			return err
		},
	}
}
