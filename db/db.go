package db

import (
	"airquality-alert-bot/subscription"
	"context"
	"database/sql"
	"github.com/go-pg/pg/v10"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is a subscription.Store backed by Postgres or SQLite.
type DB struct {
	db      *bun.DB
	timeout time.Duration
	// readTx is used for multi-table reads so that a subscriber row and its
	// index rows come from one snapshot.
	readTx *sql.TxOptions
}

var _ subscription.Store = (*DB)(nil)

const defaultTimeout = time.Minute

// NewPostgres connects to the database described by a postgres:// URL.
func NewPostgres(url string) (*DB, error) {
	connector, err := newConnector(url)
	if err != nil {
		return nil, err
	}
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())
	return &DB{
		db:      db,
		timeout: defaultTimeout,
		readTx:  &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	}, nil
}

// newConnector keeps the TLS settings of the URL sslmode. A nil TLS config
// disables TLS.
func newConnector(url string) (*pgdriver.Connector, error) {
	opt, err := pg.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse database url")
	}
	return pgdriver.NewConnector(
		pgdriver.WithTLSConfig(opt.TLSConfig),
		pgdriver.WithAddr(opt.Addr),
		pgdriver.WithUser(opt.User),
		pgdriver.WithPassword(opt.Password),
		pgdriver.WithDatabase(opt.Database),
	), nil
}

// NewSQLite opens an SQLite database. SQLite allows a single writer, so the
// pool is limited to one connection.
func NewSQLite(dsn string) (*DB, error) {
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open sqlite database")
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	return &DB{db: db, timeout: defaultTimeout}, nil
}

func (d *DB) SetTimeout(duration time.Duration) {
	d.timeout = duration
}

func (d *DB) EnableDebug() {
	d.db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Init creates missing tables.
func (d *DB) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	models := []interface{}{
		(*Subscriber)(nil),
		(*SubscriberRegion)(nil),
		(*SubscriberStation)(nil),
		(*AlertRecord)(nil),
		(*ConversationState)(nil),
	}
	for _, model := range models {
		_, err := d.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			return errors.Wrapf(err, "unable to create table for %T", model)
		}
	}
	_, err := d.db.NewCreateIndex().
		Model((*SubscriberRegion)(nil)).
		Index("subscriber_regions_region_idx").
		Column("region").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to create region index")
	}
	_, err = d.db.NewCreateIndex().
		Model((*SubscriberStation)(nil)).
		Index("subscriber_stations_station_id_idx").
		Column("station_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to create station index")
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.PingContext(ctx)
}
