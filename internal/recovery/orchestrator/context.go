package orchestrator

import (
	"context"

	"github.com/vietddude/supervisor/internal/recovery/snapshot"
)

type restoredStateKey struct{}

func withRestoredState(ctx context.Context, rb *snapshot.RollbackResult) context.Context {
	return context.WithValue(ctx, restoredStateKey{}, rb)
}

// RestoredState returns the snapshot state a recovery callback is being
// re-invoked with after a rollback.
func RestoredState(ctx context.Context) (*snapshot.RollbackResult, bool) {
	rb, ok := ctx.Value(restoredStateKey{}).(*snapshot.RollbackResult)
	return rb, ok && rb != nil
}
