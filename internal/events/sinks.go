// Package events — sinks.go: базовые приёмники событий.
package events

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// LogSink пишет события в лог. Всегда подключён: даже без Telegram
// у оператора остаётся след каждого перехода.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Publish(_ context.Context, e Event) {
	log.WithFields(log.Fields{
		"user_id": e.AccountID(),
		"event":   fmt.Sprintf("%T", e),
	}).Info("Событие сверки")
}

// MultiSink раздаёт событие нескольким приёмникам по очереди.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(ctx context.Context, e Event) {
	for _, s := range m.sinks {
		s.Publish(ctx, e)
	}
}
