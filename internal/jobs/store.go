package jobs

import "context"

// Store persists batch items so an interrupted batch can be resumed.
type Store interface {
	LoadBatchItems(ctx context.Context) ([]*BatchItem, error)
	UpsertBatchItem(ctx context.Context, item *BatchItem) error
	DeleteBatchItem(ctx context.Context, id string) error
}
