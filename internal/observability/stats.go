package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Stats is one Engine's traffic and reconnect counters. Unlike the
// teacher's process-wide singleton, an Engine owns its own instance so
// multiple sessions in one process don't share counters.
type Stats struct {
	BytesSent        atomic.Int64 // cumulative bytes written to data channels
	BytesRecv        atomic.Int64 // cumulative bytes read from data channels
	ReconnectAttempts atomic.Int64 // cumulative reconnect attempts (soft + full)
	FullReconnects    atomic.Int64 // cumulative full-reconnect attempts
}

func NewStats() *Stats { return &Stats{} }

func (s *Stats) AddSent(n int) { s.BytesSent.Add(int64(n)) }
func (s *Stats) AddRecv(n int) { s.BytesRecv.Add(int64(n)) }

func (s *Stats) AddReconnectAttempt(full bool) {
	s.ReconnectAttempts.Add(1)
	if full {
		s.FullReconnects.Add(1)
	}
}

// StartReporter launches a goroutine that checks throughput every 10
// seconds and logs a summary when either direction averaged more than
// 10 B/s over that window, stopping when ctx is cancelled.
func (s *Stats) StartReporter(ctx context.Context, log *Logger) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv int64
		for {
			select {
			case <-ticker.C:
				sent := s.BytesSent.Load()
				recv := s.BytesRecv.Load()
				outS := float64(sent-prevSent) / 10.0
				inS := float64(recv-prevRecv) / 10.0

				if outS > 10 || inS > 10 {
					log.Info(formatStats(inS, outS, s.ReconnectAttempts.Load()))
				}

				prevSent, prevRecv = sent, recv

			case <-ctx.Done():
				return
			}
		}
	}()
}

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a fixed-width (8 char) string, e.g.
// "99.0   B", " 1.5 KiB", " 0.1 MiB".
func formatBytes(b float64) string {
	unitIdx := 0
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}
	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

func formatStats(inS, outS float64, reconnects int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Reconnects: %d",
		formatBytes(inS), formatBytes(outS), reconnects)
}
