package cli

import (
	"fmt"

	"github.com/nao1215/vaultdesk/internal/store"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "データベースのマイグレーションを適用する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := store.Connect(cmd.Context(), cfg.Database.Path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			applied, err := store.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				_, err = fmt.Fprintln(out, "適用するマイグレーションはありません")
				return err
			}
			for _, f := range applied {
				if _, err := fmt.Fprintf(out, "applied %06d %s\n", f.Version, f.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
