// Package cli は vaultdesk コマンドのサブコマンドを定義する。
package cli

import (
	"github.com/nao1215/vaultdesk/internal/config"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "vaultdesk",
		Short:         "ヘルプデスクと認証情報保管庫のバックエンド",
		Long:          "VaultDesk はチケット、パスワード保管庫、通知配信を提供するヘルプデスクのAPIサーバー。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "設定ファイルのパス (省略時は VAULTDESK_CONFIG または ./vaultdesk.yaml)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newCreateAdminCmd(opts))
	return cmd
}

// loadConfig は設定を読み込み、ロガーを初期化する。
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, nil
}

// NewRootCmdForTest はテスト用にルートコマンドを返す。
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute はルートコマンドを実行する。
func Execute() error {
	return newRootCmd().Execute()
}
