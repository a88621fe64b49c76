package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/fontbuilder/internal/config"
	"git.home.luguber.info/inful/fontbuilder/internal/eventstore"
	"git.home.luguber.info/inful/fontbuilder/internal/logfields"
	"git.home.luguber.info/inful/fontbuilder/internal/retry"
	"git.home.luguber.info/inful/fontbuilder/internal/task"
)

// taskEventMessage is the wire format published for each lifecycle event.
type taskEventMessage struct {
	Type        string    `json:"type"`
	Fingerprint string    `json:"fingerprint"`
	TaskID      string    `json:"task_id,omitempty"`
	FontName    string    `json:"font_name,omitempty"`
	Glyphs      int       `json:"glyphs,omitempty"`
	Worker      string    `json:"worker,omitempty"`
	DurationMS  int64     `json:"duration_ms,omitempty"`
	OutputPath  string    `json:"output_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NATSEmitter publishes task lifecycle events to a JetStream subject.
type NATSEmitter struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSEmitter connects to NATS and prepares the JetStream context.
func NewNATSEmitter(cfg config.NATSConfig) (*NATSEmitter, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("NATS event publishing is disabled")
	}

	// The broker may come up after us; retry the initial connect with
	// backoff before giving up.
	policy := retry.DefaultPolicy()
	var conn *nats.Conn
	var err error
	for attempt := 0; ; attempt++ {
		conn, err = nats.Connect(cfg.URL)
		if err == nil {
			break
		}
		if attempt >= policy.MaxRetries {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		delay := policy.Delay(attempt + 1)
		slog.Warn("NATS connect failed, retrying", "url", cfg.URL, "delay", delay, logfields.Error(err))
		time.Sleep(delay)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS event publisher initialized", "url", cfg.URL, "subject", cfg.Subject)

	return &NATSEmitter{conn: conn, js: js, subject: cfg.Subject}, nil
}

func (e *NATSEmitter) publish(msg taskEventMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("Failed to marshal task event", "event_type", msg.Type, logfields.Error(err))
		return
	}
	if _, err := e.js.Publish(ctx, e.subject, data); err != nil {
		slog.Warn("Failed to publish task event",
			"event_type", msg.Type,
			logfields.Fingerprint(msg.Fingerprint),
			logfields.Error(err))
	}
}

func (e *NATSEmitter) EmitTaskQueued(_ context.Context, t *task.Task) {
	e.publish(taskEventMessage{
		Type:        eventstore.TypeTaskQueued,
		Fingerprint: t.Fingerprint,
		TaskID:      t.ID,
		FontName:    t.Config.Name,
		Glyphs:      len(t.Config.Glyphs),
	})
}

func (e *NATSEmitter) EmitTaskCoalesced(_ context.Context, t *task.Task) {
	e.publish(taskEventMessage{
		Type:        eventstore.TypeTaskCoalesced,
		Fingerprint: t.Fingerprint,
		TaskID:      t.ID,
	})
}

func (e *NATSEmitter) EmitCacheHit(_ context.Context, fingerprint string) {
	e.publish(taskEventMessage{Type: eventstore.TypeCacheHit, Fingerprint: fingerprint})
}

func (e *NATSEmitter) EmitTaskStarted(_ context.Context, t *task.Task, workerID string) {
	e.publish(taskEventMessage{
		Type:        eventstore.TypeTaskStarted,
		Fingerprint: t.Fingerprint,
		TaskID:      t.ID,
		Worker:      workerID,
	})
}

func (e *NATSEmitter) EmitTaskCompleted(_ context.Context, t *task.Task, d time.Duration) {
	e.publish(taskEventMessage{
		Type:        eventstore.TypeTaskCompleted,
		Fingerprint: t.Fingerprint,
		TaskID:      t.ID,
		DurationMS:  d.Milliseconds(),
		OutputPath:  t.OutputPath,
	})
}

func (e *NATSEmitter) EmitTaskFailed(_ context.Context, t *task.Task, d time.Duration, err error) {
	msg := taskEventMessage{
		Type:        eventstore.TypeTaskFailed,
		Fingerprint: t.Fingerprint,
		TaskID:      t.ID,
		DurationMS:  d.Milliseconds(),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	e.publish(msg)
}

// Close closes the NATS connection.
func (e *NATSEmitter) Close() error {
	if e.conn != nil {
		e.conn.Close()
	}
	return nil
}
