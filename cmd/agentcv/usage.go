package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) usageCmd() *cobra.Command {
	var format string
	var reset bool
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show today's submission usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, cfg, cleanup, err := c.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			id := c.identity(cfg)
			get := eng.Usage.GetUsage
			if reset {
				get = eng.Usage.Reset
			}
			rec, err := get(cmd.Context(), id)
			if err != nil {
				return err
			}

			if format == "json" {
				return json.NewEncoder(c.out).Encode(map[string]any{
					"used":          rec.Used,
					"limit":         rec.Limit,
					"remaining":     rec.Remaining(),
					"lastResetDate": rec.LastResetDate,
					"identityClass": id.Class(),
				})
			}
			fmt.Fprintf(c.out, "Identity:   %s\n", id.Class())
			fmt.Fprintf(c.out, "Used:       %d of %d\n", rec.Used, rec.Limit)
			fmt.Fprintf(c.out, "Reset date: %s\n", rec.LastResetDate)
			fmt.Fprintf(c.out, "Submissions remaining today: %d\n", rec.Remaining())
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "pretty", "output format: pretty|json")
	cmd.Flags().BoolVar(&reset, "reset", false, "zero today's counter (development only)")
	_ = cmd.Flags().MarkHidden("reset")
	return cmd
}
