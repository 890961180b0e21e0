package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"ledgerpolice.dipix.pw/internal/police"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Stats struct {
	PublishedTotal uint64
	FailedTotal    uint64
}

// KafkaPublisher publishes one JSON record per police lookup, keyed by world
// so lookups of one world stay ordered within a partition.
type KafkaPublisher struct {
	w   messageWriter
	log *log.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewKafkaPublisher writes asynchronously; delivery failures are counted and
// logged but never reach the lookup that produced them.
func NewKafkaPublisher(brokers []string, topic string, logger *log.Logger) *KafkaPublisher {
	p := &KafkaPublisher{log: logger}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion:   p.complete,
	}
	return p
}

func (p *KafkaPublisher) complete(msgs []kafka.Message, err error) {
	if err == nil {
		p.published.Add(uint64(len(msgs)))
		return
	}
	p.failed.Add(uint64(len(msgs)))
	p.printf("kafka publish failed n=%d err=%v", len(msgs), err)
}

// RecordLookup implements police.LookupRecorder.
func (p *KafkaPublisher) RecordLookup(ctx context.Context, ev police.LookupEvent) error {
	msg, err := encodeLookup(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func encodeLookup(ev police.LookupEvent) (kafka.Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal lookup: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.World),
		Value: b,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("police.lookup")},
			{Key: "staff", Value: []byte(ev.Staff)},
		},
	}, nil
}

func (p *KafkaPublisher) Stats() Stats {
	return Stats{PublishedTotal: p.published.Load(), FailedTotal: p.failed.Load()}
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func (p *KafkaPublisher) printf(format string, args ...any) {
	if p.log != nil {
		p.log.Printf(format, args...)
	}
}
