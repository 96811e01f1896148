package assess

import "context"

// Store is the persistence interface for live session records. Sessions
// exist so a responder can resume a dropped connection mid-assessment;
// closed sessions are deleted, nothing survives as queryable history.
type Store interface {
	Get(ctx context.Context, id string) (*Record, bool, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
}
