// VaultDesk のエントリポイント。
// APIサーバーの起動、マイグレーション、管理者作成のサブコマンドを提供する。
package main

import (
	"fmt"
	"os"

	"github.com/nao1215/vaultdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "エラー:", err)
		os.Exit(1)
	}
}
