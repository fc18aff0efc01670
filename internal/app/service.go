package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
)

// readHeaderTimeout はリクエストヘッダー読み込みの上限。
const readHeaderTimeout = 10 * time.Second

// httpServer は *http.Server のライフサイクルメソッド。
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// httpService はHTTPサーバーをsutureのサービスとして実行する。
type httpService struct {
	server          httpServer
	shutdownTimeout time.Duration
}

func newHTTPService(server httpServer, shutdownTimeout time.Duration) *httpService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &httpService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve はコンテキストがキャンセルされるまでリクエストを受け付け、キャンセル後はグレースフルに停止する。
// ポートを確保できない場合は再起動しても回復しないため、スーパーバイザーごと停止させる。
func (h *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			return nil
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "listen" {
			return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, err)
		}
		return fmt.Errorf("HTTPサーバーが停止: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *httpService) String() string {
	return "http-server"
}
