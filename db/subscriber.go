package db

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/subscription"
	"context"
	"database/sql"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"strings"
	"time"
)

const hoursSeparator = ","

func (d *DB) GetSubscriber(ctx context.Context, id string) (subscription.Subscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	var s subscription.Subscriber
	err := d.db.RunInTx(ctx, d.readTx, func(ctx context.Context, tx bun.Tx) error {
		row := Subscriber{Id: id}
		err := tx.NewSelect().Model(&row).WherePK().Scan(ctx)
		if err != nil && errors.Is(err, sql.ErrNoRows) {
			return subscription.ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "error during querying subscriber")
		}
		var regions []SubscriberRegion
		err = tx.NewSelect().Model(&regions).Where("subscriber_id = ?", id).Order("region").Scan(ctx)
		if err != nil {
			return errors.Wrap(err, "error during querying subscriber regions")
		}
		var stations []SubscriberStation
		err = tx.NewSelect().Model(&stations).Where("subscriber_id = ?", id).Order("station_id").Scan(ctx)
		if err != nil {
			return errors.Wrap(err, "error during querying subscriber stations")
		}
		s, err = fromRows(row, regions, stations)
		return err
	})
	if err != nil {
		return subscription.Subscriber{}, err
	}
	return s, nil
}

// UpsertSubscriber replaces the subscriber row and its index rows in one
// transaction.
func (d *DB) UpsertSubscriber(ctx context.Context, s subscription.Subscriber) error {
	if !s.Complete() {
		return errors.Wrapf(subscription.ErrIncomplete, "subscriber %v", s.ID)
	}
	s = s.Normalize()
	row, regions, stations := toRows(s, time.Now().UTC())
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&row).
			On("CONFLICT (id) DO UPDATE").
			Set("level = EXCLUDED.level").
			Set("hours = EXCLUDED.hours").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "error during upserting subscriber")
		}
		_, err = tx.NewDelete().Model((*SubscriberRegion)(nil)).Where("subscriber_id = ?", s.ID).Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "error during clearing subscriber regions")
		}
		if len(regions) > 0 {
			_, err = tx.NewInsert().Model(&regions).Exec(ctx)
			if err != nil {
				return errors.Wrap(err, "error during adding subscriber regions")
			}
		}
		_, err = tx.NewDelete().Model((*SubscriberStation)(nil)).Where("subscriber_id = ?", s.ID).Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "error during clearing subscriber stations")
		}
		if len(stations) > 0 {
			_, err = tx.NewInsert().Model(&stations).Exec(ctx)
			if err != nil {
				return errors.Wrap(err, "error during adding subscriber stations")
			}
		}
		return nil
	})
}

// DeleteSubscriber removes the subscriber together with its index rows and
// alert records.
func (d *DB) DeleteSubscriber(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		models := []interface{}{
			(*SubscriberRegion)(nil),
			(*SubscriberStation)(nil),
			(*AlertRecord)(nil),
		}
		for _, model := range models {
			_, err := tx.NewDelete().Model(model).Where("subscriber_id = ?", id).Exec(ctx)
			if err != nil {
				return errors.Wrapf(err, "error during deleting %T", model)
			}
		}
		_, err := tx.NewDelete().Model((*Subscriber)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "error during deleting subscriber")
		}
		return nil
	})
}

func (d *DB) SubscribersByRegion(ctx context.Context, region subscription.Region) ([]string, error) {
	var ids []string
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model((*SubscriberRegion)(nil)).
		Column("subscriber_id").
		Where("region = ?", string(region)).
		Order("subscriber_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.Wrapf(err, "error during querying subscribers of region %v", region)
	}
	return ids, nil
}

func (d *DB) SubscribersByStation(ctx context.Context, stationID int) ([]string, error) {
	var ids []string
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model((*SubscriberStation)(nil)).
		Column("subscriber_id").
		Where("station_id = ?", stationID).
		Order("subscriber_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.Wrapf(err, "error during querying subscribers of station %v", stationID)
	}
	return ids, nil
}

func (d *DB) Watched(ctx context.Context) ([]subscription.Region, []int, error) {
	var regionNames []string
	var stations []int
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model((*SubscriberRegion)(nil)).
		ColumnExpr("DISTINCT region").
		Order("region").
		Scan(ctx, &regionNames)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error during querying watched regions")
	}
	err = d.db.NewSelect().
		Model((*SubscriberStation)(nil)).
		ColumnExpr("DISTINCT station_id").
		Order("station_id").
		Scan(ctx, &stations)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error during querying watched stations")
	}
	regions := make([]subscription.Region, 0, len(regionNames))
	for _, name := range regionNames {
		regions = append(regions, subscription.Region(name))
	}
	return regions, stations, nil
}

func toRows(s subscription.Subscriber, now time.Time) (Subscriber, []SubscriberRegion, []SubscriberStation) {
	hours := make([]string, 0, len(s.Hours))
	for _, h := range s.Hours {
		hours = append(hours, string(h))
	}
	row := Subscriber{
		Id:        s.ID,
		Level:     s.Level.String(),
		Hours:     strings.Join(hours, hoursSeparator),
		UpdatedAt: now,
	}
	regions := make([]SubscriberRegion, 0, len(s.Regions))
	for _, r := range s.Regions {
		regions = append(regions, SubscriberRegion{SubscriberId: s.ID, Region: string(r)})
	}
	stations := make([]SubscriberStation, 0, len(s.Stations))
	for _, st := range s.Stations {
		stations = append(stations, SubscriberStation{SubscriberId: s.ID, StationId: st})
	}
	return row, regions, stations
}

func fromRows(row Subscriber, regions []SubscriberRegion, stations []SubscriberStation) (subscription.Subscriber, error) {
	l, err := level.Parse(row.Level)
	if err != nil {
		return subscription.Subscriber{}, errors.Wrapf(err, "subscriber %v has invalid level", row.Id)
	}
	s := subscription.Subscriber{ID: row.Id, Level: l}
	for _, r := range regions {
		s.Regions = append(s.Regions, subscription.Region(r.Region))
	}
	for _, st := range stations {
		s.Stations = append(s.Stations, st.StationId)
	}
	if row.Hours != "" {
		for _, h := range strings.Split(row.Hours, hoursSeparator) {
			s.Hours = append(s.Hours, subscription.Window(h))
		}
	}
	return s, nil
}
