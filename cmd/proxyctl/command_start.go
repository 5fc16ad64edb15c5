package main

import "github.com/spf13/cobra"

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "start [URL]",
		Aliases: []string{"run"},
		Short:   "Start Mihomo",
		Long:    "Start Mihomo in the background. URL, when given, is the subscription config to download.",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var url string
			if len(args) == 1 {
				url = args[0]
			}
			p, err := opts.provisioner()
			if err != nil {
				return err
			}
			return p.Start(cmd.Context(), url)
		},
	}
}
