// Package eventlog is the progress sink for agent executions: an append-only,
// mutex-serialized record of timestamped events with optional live delivery
// to subscribers.
package eventlog

import (
	"fmt"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is one progress record. Source identifies the emitter (a task id,
// stage name, or "engine").
type Event struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message"`
}

func (e Event) String() string {
	if e.Source != "" {
		return fmt.Sprintf("%s [%s] %s: %s", e.Time.Format("15:04:05"), e.Level, e.Source, e.Message)
	}
	return fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05"), e.Level, e.Message)
}

// subscriberBuffer bounds each live channel; a slow subscriber drops events
// rather than stalling the emitter.
const subscriberBuffer = 64

// Log collects events from concurrent emitters. The zero value is not
// usable; call New.
type Log struct {
	mu     sync.Mutex
	events []Event
	subs   []chan Event
	now    func() time.Time
}

func New() *Log {
	return &Log{now: time.Now}
}

// Logf appends a formatted event and fans it out to subscribers.
func (l *Log) Logf(level Level, source, format string, args ...any) {
	if l == nil {
		return
	}
	e := Event{
		Time:    l.now(),
		Level:   level,
		Source:  source,
		Message: fmt.Sprintf(format, args...),
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	l.mu.Unlock()
}

func (l *Log) Infof(source, format string, args ...any) {
	l.Logf(LevelInfo, source, format, args...)
}

func (l *Log) Warnf(source, format string, args ...any) {
	l.Logf(LevelWarning, source, format, args...)
}

func (l *Log) Errorf(source, format string, args ...any) {
	l.Logf(LevelError, source, format, args...)
}

func (l *Log) Debugf(source, format string, args ...any) {
	l.Logf(LevelDebug, source, format, args...)
}

// Events returns a copy of everything logged so far, in emission order.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Len reports the number of events without copying them.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Subscribe returns a bounded channel that receives events logged after the
// call. The returned cancel func closes the channel and detaches it.
func (l *Log) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			for i, sub := range l.subs {
				if sub == ch {
					l.subs = append(l.subs[:i], l.subs[i+1:]...)
					break
				}
			}
			l.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
