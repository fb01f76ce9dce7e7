package db

import (
	"airquality-alert-bot/subscription"
	"context"
	"database/sql"
	"encoding/json"
	"github.com/pkg/errors"
	"time"
)

func (d *DB) GetConversationState(ctx context.Context, id string) (subscription.ConversationState, error) {
	row := ConversationState{Id: id}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().Model(&row).WherePK().Scan(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return subscription.ConversationState{}, subscription.ErrNotFound
	}
	if err != nil {
		return subscription.ConversationState{}, errors.Wrap(err, "error during querying conversation state")
	}
	var state subscription.ConversationState
	err = json.Unmarshal([]byte(row.Data), &state)
	if err != nil {
		return subscription.ConversationState{}, errors.Wrapf(err, "unable to decode conversation state of %v", id)
	}
	return state, nil
}

func (d *DB) SetConversationState(ctx context.Context, id string, state subscription.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "unable to encode conversation state")
	}
	row := ConversationState{Id: id, Data: string(data), UpdatedAt: time.Now().UTC()}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err = d.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during saving conversation state")
	}
	return nil
}

func (d *DB) ClearConversationState(ctx context.Context, id string) error {
	row := ConversationState{Id: id}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.db.NewDelete().Model(&row).WherePK().Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during clearing conversation state")
	}
	return nil
}
