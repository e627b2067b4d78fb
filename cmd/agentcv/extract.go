package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract-job <job-link>",
		Short: "Print the job description extracted from a posting link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, cleanup, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := eng.Extractor.JobDescription(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, text)
			return nil
		},
	}
}
