package cli

import (
	"therapist-match-service/internal/config"
	"github.com/spf13/cobra"
)

// NewCascadeCmd groups maintenance commands for tag deletion cascades.
func NewCascadeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cascade",
		Short: "Tag deletion cascade maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "resume",
		Short: "Replay tag deletions that were interrupted mid-cascade",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()
			wired, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer wired.Close()

			n, err := wired.services.Tags.ResumeCascades(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("resumed %d cascade(s)\n", n)
			return nil
		},
	})
	return cmd
}
