// Package publish ships score snapshots to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"meridian/internal/domain"
)

// Snapshot is one persisted evaluation as seen by subscribers.
type Snapshot struct {
	Score          domain.Score `json:"score"`
	Trigger        string       `json:"trigger"`
	PreviousStatus string       `json:"previous_status,omitempty"`
	PublishedAt    string       `json:"published_at"`
}

// StatusChanged reports whether the RAG band moved since the previous score.
func (s Snapshot) StatusChanged() bool {
	return s.PreviousStatus != "" && s.PreviousStatus != s.Score.RAGStatus
}

type Publisher interface {
	Publish(ctx context.Context, s Snapshot) error
	Close() error
}

// Nop discards every snapshot.
type Nop struct{}

func (Nop) Publish(context.Context, Snapshot) error { return nil }
func (Nop) Close() error                            { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes snapshots as JSON keyed by workstream id, so each workstream
// stays ordered within its partition.
type Kafka struct {
	w   messageWriter
	Now func() time.Time
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		Now: time.Now,
	}
}

func (k *Kafka) Publish(ctx context.Context, s Snapshot) error {
	if s.PublishedAt == "" {
		s.PublishedAt = k.Now().UTC().Format(time.RFC3339)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(s.Score.WorkstreamID),
		Value: b,
		Time:  k.Now(),
		Headers: []kafka.Header{
			{Key: "rag_status", Value: []byte(s.Score.RAGStatus)},
			{Key: "trigger", Value: []byte(s.Trigger)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", s.Score.WorkstreamID, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }

// Memory keeps snapshots in order; used by tests and dry runs.
type Memory struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (m *Memory) Publish(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}
