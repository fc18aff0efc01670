package notification

import (
	"context"
	"time"

	"github.com/nao1215/vaultdesk/pkg/logging"
)

// RetentionSweeper は保持期間を過ぎた既読通知を定期的に削除する。
// 未読通知は期間に関わらず残す。
type RetentionSweeper struct {
	ledger    *Ledger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewRetentionSweeper は retentionDays 日より古い既読通知を interval ごとに削除するスイーパーを返す。
func NewRetentionSweeper(ledger *Ledger, retentionDays int, interval time.Duration) *RetentionSweeper {
	return &RetentionSweeper{
		ledger:    ledger,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		now:       time.Now,
	}
}

// Sweep は1回分の削除を行い、削除件数を返す。
func (s *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	return s.ledger.PurgeRead(ctx, s.now().Add(-s.retention))
}

// Serve はコンテキストがキャンセルされるまで定期的に Sweep を実行する。
func (s *RetentionSweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("既読通知の削除に失敗")
				continue
			}
			if n > 0 {
				logging.Info().Int64("deleted", n).Dur("retention", s.retention).Msg("保持期間を過ぎた既読通知を削除")
			}
		}
	}
}

// String はサービス名を返す。
func (s *RetentionSweeper) String() string {
	return "notification-retention"
}
