package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PollerOptions configures a SQL query poller.
type PollerOptions struct {
	// DSN is a pgx connection string.
	DSN string
	// Query runs on every tick. The first column of each row becomes the
	// point value; a second column, when present and a time.Time, becomes
	// the point timestamp.
	Query string
	// Stream receives the appended points.
	Stream string
	// Interval is the poll cadence. Default 5s.
	Interval time.Duration
	Logger   zerolog.Logger
}

// Poller runs a SQL query on a fixed cadence and appends each result row as
// a data point. Query errors are logged and the next tick retried; the
// poller never takes the engine down with it.
type Poller struct {
	opts PollerOptions
	pool *pgxpool.Pool
	app  Appender
	log  zerolog.Logger
}

// NewPoller validates opts and opens the connection pool. Connections are
// established lazily, so a down database delays errors to the first tick.
func NewPoller(ctx context.Context, opts PollerOptions, app Appender) (*Poller, error) {
	if opts.DSN == "" || opts.Query == "" {
		return nil, fmt.Errorf("producer: poller needs both dsn and query")
	}
	if opts.Stream == "" {
		return nil, fmt.Errorf("producer: poller needs a target stream")
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	pool, err := pgxpool.New(ctx, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("producer: open pool: %w", err)
	}
	return &Poller{opts: opts, pool: pool, app: app, log: opts.Logger}, nil
}

// Run polls until ctx is cancelled, then closes the pool.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info().Str("stream", p.opts.Stream).Dur("interval", p.opts.Interval).Msg("sql poller started")
	defer p.pool.Close()

	t := time.NewTicker(p.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := p.poll(ctx); err != nil {
				p.log.Warn().Err(err).Msg("poll failed")
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	rows, err := p.pool.Query(ctx, p.opts.Query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	appended := 0
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if len(vals) == 0 {
			continue
		}
		var ts time.Time
		if len(vals) > 1 {
			if t, ok := vals[1].(time.Time); ok {
				ts = t
			}
		}
		if !p.app.AppendPoint(p.opts.Stream, vals[0], ts, map[string]string{"source": "poll"}) {
			return nil
		}
		appended++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	p.log.Debug().Int("points", appended).Msg("poll appended")
	return nil
}
