package tasks

import (
	"context"
	"log/slog"
	"time"

	"boxguard/internal/device"
	"boxguard/internal/model"
)

// Publisher is the outbound telemetry client. Publish reports overall
// success across its transports; failures are already logged inside.
type Publisher interface {
	Publish(ctx context.Context, feed string, value any) bool
	UploadPhoto(ctx context.Context, filename, path string) error
}

type AlertSender interface {
	SendAlert(ctx context.Context, mode model.Mode, stealth bool) error
}

// Recorder is the slice of the core the pipeline reports back into.
type Recorder interface {
	Record(t model.EventType, details string)
	MarkPhoto(filename string)
	Snapshot() (mode model.Mode, stealth bool)
}

type Runner struct {
	queue     *Queue
	publisher Publisher
	camera    device.Camera
	siren     device.Siren
	mailer    AlertSender
	recorder  Recorder
	photoPath func(filename string) string
	logger    *slog.Logger
}

func NewRunner(queue *Queue, publisher Publisher, camera device.Camera, siren device.Siren,
	mailer AlertSender, recorder Recorder, photoPath func(string) string, logger *slog.Logger) *Runner {
	return &Runner{
		queue:     queue,
		publisher: publisher,
		camera:    camera,
		siren:     siren,
		mailer:    mailer,
		recorder:  recorder,
		photoPath: photoPath,
		logger:    logger,
	}
}

// Run drains the queue until the context is cancelled. One consumer: tasks
// execute in FIFO order, and a failure in one is isolated from the next.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case task := <-r.queue.ch:
			r.execute(ctx, task)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) execute(ctx context.Context, task model.Task) {
	switch task.Kind {
	case model.TaskPublish:
		if r.publisher != nil {
			r.publisher.Publish(ctx, task.Feed, task.Value)
		}
	case model.TaskCapturePhoto:
		r.capturePhoto(ctx, task.Reason)
	case model.TaskBeep:
		if r.siren != nil {
			d := task.Duration
			if d <= 0 {
				d = 100 * time.Millisecond
			}
			r.siren.BeepTwice(d)
		}
	case model.TaskEmailAlert:
		r.sendAlert(ctx)
	default:
		if r.logger != nil {
			r.logger.Warn("unknown task kind", "kind", task.Kind)
		}
	}
}

func (r *Runner) capturePhoto(ctx context.Context, reason string) {
	if r.camera == nil {
		return
	}
	filename, err := r.camera.Capture(ctx)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("photo capture failed", "reason", reason, "err", err)
		}
		return
	}
	if r.recorder != nil {
		r.recorder.MarkPhoto(filename)
		r.recorder.Record(model.EventPhoto, reason+": "+filename)
	}
	if r.publisher != nil && r.photoPath != nil {
		if err := r.publisher.UploadPhoto(ctx, filename, r.photoPath(filename)); err != nil && r.logger != nil {
			r.logger.Warn("photo upload failed", "filename", filename, "err", err)
		}
	}
}

func (r *Runner) sendAlert(ctx context.Context) {
	if r.mailer == nil {
		return
	}
	var mode model.Mode
	var stealth bool
	if r.recorder != nil {
		mode, stealth = r.recorder.Snapshot()
	}
	if err := r.mailer.SendAlert(ctx, mode, stealth); err != nil && r.logger != nil {
		r.logger.Error("alarm email failed", "err", err)
	}
}
