package repository

import (
	"context"
)

// WebhookEventRepository is the processed-event-id set that makes processor
// callbacks safe to replay: the first insert of an event id wins, later
// deliveries of the same id are skipped by the caller.
type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// MarkProcessed records the event id and reports whether this delivery is the
// first one.
func (r *WebhookEventRepository) MarkProcessed(
	ctx context.Context,
	eventID string,
	kind string,
) (bool, error) {
	query := `
		INSERT INTO webhook_events (event_id, kind)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, eventID, kind)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Forget releases an event id whose state change did not commit, so the
// processor's retry of the same delivery is applied instead of skipped.
func (r *WebhookEventRepository) Forget(ctx context.Context, eventID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM webhook_events WHERE event_id = $1`, eventID)
	return err
}
