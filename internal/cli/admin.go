package cli

import (
	"errors"
	"fmt"

	"github.com/nao1215/vaultdesk/internal/store"
	"github.com/nao1215/vaultdesk/internal/user"
	"github.com/spf13/cobra"
)

type createAdminOptions struct {
	username string
	password string
	name     string
	email    string
}

func newCreateAdminCmd(opts *options) *cobra.Command {
	a := &createAdminOptions{}
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "管理者ユーザーを作成する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(a.password) < 8 {
				return errors.New("パスワードは8文字以上で指定してください")
			}
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := store.Open(cmd.Context(), cfg.Database.Path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			name := a.name
			if name == "" {
				name = a.username
			}
			u, err := user.NewRepository(db).Create(cmd.Context(), user.CreateParams{
				Username: a.username,
				Password: a.password,
				Name:     name,
				Email:    a.email,
				IsAdmin:  true,
			})
			if errors.Is(err, user.ErrDuplicateUsername) {
				return fmt.Errorf("ユーザー名 %q は既に使われています", a.username)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "管理者 %s を作成しました (id: %s)\n", u.Username, u.ID)
			return err
		},
	}
	cmd.Flags().StringVarP(&a.username, "username", "u", "", "ユーザー名")
	cmd.Flags().StringVarP(&a.password, "password", "p", "", "パスワード (8文字以上)")
	cmd.Flags().StringVar(&a.name, "name", "", "表示名 (省略時はユーザー名)")
	cmd.Flags().StringVar(&a.email, "email", "", "通知の送信先メールアドレス")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
