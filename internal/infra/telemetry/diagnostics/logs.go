package diagnostics

import (
	"context"

	"mgmtd/internal/domain"
)

// CaptureLogs starts buf and feeds it every entry of a log subscription. The
// buffer stops filling once ctx is done or entries is closed.
func CaptureLogs(ctx context.Context, entries <-chan domain.LogEntry, buf *AsyncBuffer[domain.LogEntry]) {
	buf.Start(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				buf.Add(entry)
			}
		}
	}()
}
