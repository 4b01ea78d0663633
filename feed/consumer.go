// Package feed keeps the secondary indexes in step with the object store by
// consuming its change feed from Kafka.
package feed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/parallel"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/object"
	"github.com/ridge/quartz/retry"
	"github.com/ridge/quartz/sqldb"
	"github.com/ridge/quartz/tlog"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Defaults for Config
const (
	DefaultBatchSize     = 500
	DefaultFlushInterval = time.Second
)

const readerMaxBytes = 1e7

var readerRetry = retry.FixedConfig{RetryAfter: time.Second}

// Reader is the subset of kafka.Reader the consumer uses
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Transactor runs a function in a database transaction
type Transactor interface {
	Do(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Indexer writes index rows for saved objects and removes them for deleted
// ones
type Indexer interface {
	// Prepare runs before the batch transaction starts
	Prepare(ctx context.Context, states []*object.State) error
	Insert(ctx context.Context, conn sqldb.Conn, states []*object.State) error
	Delete(ctx context.Context, conn sqldb.Conn, states []*object.State) error
}

// Config configures the consumer
type Config struct {
	Brokers []string
	Topic   string
	GroupID string

	// BatchSize is the largest number of messages applied in one
	// transaction
	BatchSize int

	// FlushInterval is how long the first message of a batch may wait for
	// the batch to fill up
	FlushInterval time.Duration

	// Retry controls re-applying a batch that failed. Defaults to
	// retry.DefaultExpConfig.
	Retry retry.Config
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Retry == nil {
		c.Retry = retry.DefaultExpConfig
	}
	return c
}

// NewReader creates a consumer group reader for the feed topic. Offsets
// are committed explicitly by the consumer.
func NewReader(config Config) *kafka.Reader {
	config = config.withDefaults()
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		GroupID:     config.GroupID,
		Topic:       config.Topic,
		MinBytes:    1,
		MaxBytes:    readerMaxBytes,
		MaxWait:     config.FlushInterval,
		StartOffset: kafka.FirstOffset,
	})
}

// Consumer applies change-feed events to the indexes
type Consumer struct {
	reader   Reader
	db       Transactor
	indexer  Indexer
	registry *meta.Live
	config   Config
}

// New creates a consumer. Events are decoded with whatever registry is
// current when their batch is applied.
func New(reader Reader, db Transactor, indexer Indexer, registry *meta.Live, config Config) *Consumer {
	return &Consumer{
		reader:   reader,
		db:       db,
		indexer:  indexer,
		registry: registry,
		config:   config.withDefaults(),
	}
}

// Run consumes the feed until ctx is closed or a batch cannot be applied
func (c *Consumer) Run(ctx context.Context) error {
	ctx = tlog.With(ctx, zap.String("topic", c.config.Topic))
	tlog.Get(ctx).Info("Consuming change feed", zap.String("group", c.config.GroupID),
		zap.Int("batchSize", c.config.BatchSize), zap.Duration("flushInterval", c.config.FlushInterval))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		incoming := make(chan kafka.Message, c.config.BatchSize)
		spawn("reader", parallel.Fail, func(ctx context.Context) error {
			return c.read(ctx, incoming)
		})
		spawn("applier", parallel.Fail, func(ctx context.Context) error {
			return c.consume(ctx, incoming)
		})
		return nil
	})
}

func (c *Consumer) read(ctx context.Context, dest chan<- kafka.Message) error {
	for {
		msg, err := retry.Do1(ctx, readerRetry, func() (kafka.Message, error) {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil && shouldRetry(err) && ctx.Err() == nil {
				return msg, retry.Retriable(fmt.Errorf("failed to read from Kafka topic: %w", err))
			}
			return msg, err
		})
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case dest <- msg:
		}
	}
}

func (c *Consumer) consume(ctx context.Context, incoming <-chan kafka.Message) error {
	batch := make([]kafka.Message, 0, c.config.BatchSize)
	var flush <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-incoming:
			batch = append(batch, msg)
			if len(batch) == 1 {
				flush = time.After(c.config.FlushInterval)
			}
			if len(batch) < c.config.BatchSize {
				continue
			}
		case <-flush:
		}

		if err := c.apply(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0] // truncate while keeping the underlying capacity
		flush = nil
	}
}

// apply decodes a batch, writes it in one transaction and commits the
// offsets of all its messages
func (c *Consumer) apply(ctx context.Context, msgs []kafka.Message) error {
	logger := tlog.Get(ctx)
	reg := c.registry.Load()

	// Only the last change of each object in a batch matters
	var changes []change
	latest := map[uuid.UUID]int{}
	for _, msg := range msgs {
		ch, err := decodeMessage(reg, msg)
		if err != nil {
			logger.Error("Skipping undecodable change-feed message", zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset), zap.ByteString("key", msg.Key), zap.Error(err))
			eventsSkipped.Inc()
			continue
		}
		eventsReceived.WithLabelValues(string(ch.op)).Inc()
		if i, ok := latest[ch.state.ID]; ok {
			changes[i] = ch
			continue
		}
		latest[ch.state.ID] = len(changes)
		changes = append(changes, ch)
	}

	all := make([]*object.State, 0, len(changes))
	var saves []*object.State
	for _, ch := range changes {
		all = append(all, ch.state)
		if ch.op == OpSave {
			saves = append(saves, ch.state)
		}
	}

	if len(all) != 0 {
		err := retry.Do(ctx, c.config.Retry, func() error {
			err := c.indexer.Prepare(ctx, saves)
			if err == nil {
				err = c.db.Do(ctx, func(tx *sql.Tx) error {
					if err := c.indexer.Delete(ctx, tx, all); err != nil {
						return err
					}
					return c.indexer.Insert(ctx, tx, saves)
				})
			}
			if err != nil && ctx.Err() == nil {
				batchRetries.Inc()
				return retry.Retriable(err)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply change-feed batch: %w", err)
		}
	}

	err := retry.Do(ctx, readerRetry, func() error {
		err := c.reader.CommitMessages(ctx, msgs...)
		if err != nil && shouldRetry(err) && ctx.Err() == nil {
			return retry.Retriable(fmt.Errorf("failed to commit Kafka offsets: %w", err))
		}
		return err
	})
	if err != nil {
		return err
	}

	logger.Debug("Applied change-feed batch", zap.Int("messages", len(msgs)),
		zap.Int("objects", len(all)), zap.Int("saves", len(saves)))
	return nil
}

func shouldRetry(err error) bool {
	if errors.Is(err, kafka.Unknown) {
		return true
	}
	var kerr kafka.Error
	if !errors.As(err, &kerr) {
		return true
	}
	return kerr.Temporary()
}
