package logger

import (
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/log"
)

// SetTestMode routes the root logger into the test log.
func SetTestMode(t testing.TB) {
	log.SetDefault(log.NewLogger(log.LogfmtHandlerWithLevel(testWriter{t}, slog.LevelDebug)))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
