package db

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/subscription"
	"context"
	"database/sql"
	"github.com/pkg/errors"
)

func (d *DB) GetLastAlert(ctx context.Context, subscriberID string, stationID int) (subscription.AlertRecord, error) {
	r := AlertRecord{SubscriberId: subscriberID, StationId: stationID}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().Model(&r).WherePK().Scan(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return subscription.AlertRecord{}, subscription.ErrNotFound
	}
	if err != nil {
		return subscription.AlertRecord{}, errors.Wrap(err, "error during querying alert record")
	}
	l, err := level.Parse(r.Level)
	if err != nil {
		return subscription.AlertRecord{}, errors.Wrapf(err, "alert record %v/%v has invalid level", subscriberID, stationID)
	}
	return subscription.AlertRecord{
		SubscriberID: r.SubscriberId,
		StationID:    r.StationId,
		Level:        l,
		SentAt:       r.SentAt,
	}, nil
}

func (d *DB) SetLastAlert(ctx context.Context, record subscription.AlertRecord) error {
	r := AlertRecord{
		SubscriberId: record.SubscriberID,
		StationId:    record.StationID,
		Level:        record.Level.String(),
		SentAt:       record.SentAt.UTC(),
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.db.NewInsert().
		Model(&r).
		On("CONFLICT (subscriber_id, station_id) DO UPDATE").
		Set("level = EXCLUDED.level").
		Set("sent_at = EXCLUDED.sent_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during saving alert record")
	}
	return nil
}

func (d *DB) ClearLastAlert(ctx context.Context, subscriberID string, stationID int) error {
	r := AlertRecord{SubscriberId: subscriberID, StationId: stationID}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.db.NewDelete().Model(&r).WherePK().Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during clearing alert record")
	}
	return nil
}
