// quartz-indexer consumes the object store change feed and keeps the index
// tables up to date. It also serves the admin HTTP surface.
package main

import (
	"context"
	"time"

	_ "github.com/lib/pq"
	"github.com/ridge/parallel"
	"github.com/ridge/quartz/admin"
	"github.com/ridge/quartz/feed"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/retry"
	"github.com/ridge/quartz/run"
	"github.com/ridge/quartz/schema"
	"github.com/ridge/quartz/sqldb"
	"github.com/ridge/quartz/sqlindex"
	"github.com/ridge/quartz/tlog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func main() {
	driver := pflag.String("driver", "postgres", "database/sql driver (postgres|sqlite)")
	dsn := pflag.String("dsn", "", "Index database connection string")
	vendor := pflag.String("vendor", "", "SQL dialect (postgres|mysql|sqlite), defaults to --driver")
	maxConns := pflag.Int("max-conns", 8, "Maximum number of open database connections")
	spatial := pflag.Bool("spatial", false, "Write location and region indexes")
	ignoreCase := pflag.Bool("ignore-case", false, "The database compares text case-insensitively")
	brokers := pflag.StringSlice("brokers", []string{"localhost:9092"}, "Kafka brokers")
	topic := pflag.String("topic", "quartz-changes", "Change feed topic")
	group := pflag.String("group", "quartz-indexer", "Kafka consumer group")
	batchSize := pflag.Int("batch-size", feed.DefaultBatchSize, "Largest number of changes applied in one transaction")
	flushInterval := pflag.Duration("flush-interval", feed.DefaultFlushInterval, "Longest wait for a batch to fill up")
	schemaPath := pflag.String("schema", "schema.yaml", "Schema file, reloaded on change and on SIGHUP")
	adminAddr := pflag.String("admin", "localhost:9180", "Admin server address (tcp:<addr> or unix:<path>)")
	pflag.Parse()

	run.Server(func(ctx context.Context) error {
		reg, err := schema.Load(*schemaPath)
		if err != nil {
			return err
		}
		live := meta.NewLive(reg)

		connectRetry := retry.DefaultExpConfig
		connectRetry.Max = 10 * time.Second
		connectRetry.MaxAttempts = 30
		db, err := sqldb.Open(ctx, sqldb.Config{
			Driver:             *driver,
			DSN:                *dsn,
			Vendor:             *vendor,
			IndexSpatial:       *spatial,
			ComparesIgnoreCase: *ignoreCase,
			MaxOpenConns:       *maxConns,
			ConnectRetry:       connectRetry,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		listener, err := admin.Listen(*adminAddr)
		if err != nil {
			return err
		}
		server := admin.NewServer(listener, admin.Handler(ctx, db, live))

		config := feed.Config{
			Brokers:       *brokers,
			Topic:         *topic,
			GroupID:       *group,
			BatchSize:     *batchSize,
			FlushInterval: *flushInterval,
		}
		reader := feed.NewReader(config)
		defer func() {
			if err := reader.Close(); err != nil {
				tlog.Get(ctx).Warn("Failed to close Kafka reader", zap.Error(err))
			}
		}()
		consumer := feed.New(reader, db, sqlindex.New(db, live), live, config)

		return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
			spawn("feed", parallel.Fail, consumer.Run)
			spawn("admin", parallel.Fail, server.Run)
			spawn("schema", parallel.Fail, func(ctx context.Context) error {
				return schema.Watch(ctx, *schemaPath, live, run.Hangups(ctx))
			})
			return nil
		})
	})
}
