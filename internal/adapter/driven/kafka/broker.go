// Package kafka implements the JobBroker port on a Kafka topic using
// consumer-group reads with manual offset commits.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/ericfisherdev/creatorhub/internal/config"
	"github.com/ericfisherdev/creatorhub/internal/domain/model"
	"github.com/ericfisherdev/creatorhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobBroker = (*Broker)(nil)

const (
	writeTimeout  = 3 * time.Second
	commitTimeout = 3 * time.Second
	headerKind    = "job-kind"
)

// messageReader is the consumer side of *kgo.Reader.
type messageReader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// Broker publishes and consumes jobs. Offsets are committed only when a
// delivery is acknowledged, so a crashed worker's jobs are redelivered.
//
// Deliveries may be acknowledged in any order. A partition is committed only
// up to its last offset with no unacknowledged predecessor, and commits are
// issued one at a time so they never move backwards.
type Broker struct {
	writer *kgo.Writer
	reader messageReader

	commitMu sync.Mutex
	offsets  *offsetTracker
}

// NewBroker creates a Broker for cfg. A Broker without a group id can only
// publish; Fetch then returns an error.
func NewBroker(cfg config.KafkaConfig) (*Broker, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	b := &Broker{
		writer: &kgo.Writer{
			Addr:         kgo.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kgo.Hash{},
			RequiredAcks: kgo.RequireAll,
		},
	}
	if cfg.GroupID != "" {
		b.reader = kgo.NewReader(kgo.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0, // manual commits
		})
	}
	return b, nil
}

// Publish writes job to the topic keyed by its task id, so jobs of one task
// land on one partition.
func (b *Broker) Publish(ctx context.Context, job model.Job) error {
	msg, err := encodeJob(job)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := b.writer.WriteMessages(wctx, msg); err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return nil
}

// Fetch blocks until a decodable job is available. Undecodable messages are
// committed and skipped so they cannot stall the partition.
func (b *Broker) Fetch(ctx context.Context) (driven.Delivery, error) {
	if b.reader == nil {
		return driven.Delivery{}, errors.New("kafka: broker has no consumer group")
	}

	for {
		m, err := b.reader.FetchMessage(ctx)
		if err != nil {
			return driven.Delivery{}, err
		}

		b.offsets.fetched(m)

		job, err := decodeJob(m)
		if err != nil {
			slog.Warn("dropping undecodable job message",
				"partition", m.Partition, "offset", m.Offset, "error", err)
			if cerr := b.ack(ctx, m); cerr != nil {
				return driven.Delivery{}, cerr
			}
			continue
		}

		return driven.Delivery{
			Job: job,
			Ack: func(ctx context.Context) error { return b.ack(ctx, m) },
		}, nil
	}
}

// ack marks m handled and commits whatever prefix of its partition that
// completes.
func (b *Broker) ack(ctx context.Context, m kgo.Message) error {
	b.commitMu.Lock()
	defer b.commitMu.Unlock()

	upTo, ok := b.offsets.acked(m)
	if !ok {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()
	if err := b.reader.CommitMessages(cctx, upTo); err != nil {
		return fmt.Errorf("commit offset %d on partition %d: %w", upTo.Offset, upTo.Partition, err)
	}
	return nil
}

// Close closes the writer and the reader.
func (b *Broker) Close() error {
	var err error
	if b.writer != nil {
		err = b.writer.Close()
	}
	if b.reader != nil {
		err = errors.Join(err, b.reader.Close())
	}
	return err
}

func encodeJob(job model.Job) (kgo.Message, error) {
	if job.ID == "" {
		return kgo.Message{}, errors.New("job has no id")
	}
	value, err := json.Marshal(job)
	if err != nil {
		return kgo.Message{}, fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	key := job.TaskID
	if key == "" {
		key = job.ID
	}
	return kgo.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: []kgo.Header{{Key: headerKind, Value: []byte(job.Kind)}},
		Time:    job.EnqueuedAt,
	}, nil
}

func decodeJob(m kgo.Message) (model.Job, error) {
	var job model.Job
	if err := json.Unmarshal(m.Value, &job); err != nil {
		return model.Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" || job.Kind == "" {
		return model.Job{}, errors.New("decode job: missing id or kind")
	}
	return job, nil
}
