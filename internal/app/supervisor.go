package app

import (
	"time"

	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/thejerf/suture/v4"
)

// newSupervisor はイベントをzerologに出力するスーパーバイザーを生成する。
func newSupervisor(shutdownTimeout time.Duration) *suture.Supervisor {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return suture.New("vaultdesk", suture.Spec{
		EventHook:        logEvent,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})
}

// logEvent はsutureのイベントを種類に応じたレベルで出力する。
func logEvent(e suture.Event) {
	ev := logging.Warn()
	switch e.Type() {
	case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate:
		ev = logging.Error()
	case suture.EventTypeResume:
		ev = logging.Info()
	}
	ev.Fields(e.Map()).Msg(e.String())
}
