// Package tasks is the single-consumer pipeline through which every
// side-effecting action runs: remote publish, photo capture, beeps, email.
// Producers never call the slow collaborators directly, so a stalled network
// or camera cannot hold up the state-machine tick.
package tasks

import (
	"log/slog"

	"boxguard/internal/model"
)

type Queue struct {
	ch     chan model.Task
	logger *slog.Logger
}

func NewQueue(buffer int, logger *slog.Logger) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{ch: make(chan model.Task, buffer), logger: logger}
}

// Enqueue never blocks. A full queue drops the task with a warning; the
// durable record of the underlying event already lives in the buffer.
func (q *Queue) Enqueue(task model.Task) bool {
	select {
	case q.ch <- task:
		return true
	default:
		if q.logger != nil {
			q.logger.Warn("task queue full, dropping task", "kind", task.Kind, "feed", task.Feed)
		}
		return false
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}
