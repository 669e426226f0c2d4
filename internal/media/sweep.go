package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// SweepResult counts what a sweep did.
type SweepResult struct {
	Scanned int
	Deleted int
	Failed  int
}

// sweepWorkers bounds concurrent deletes.
const sweepWorkers = 8

// Sweep deletes every file under prefixes whose key is not in referenced.
//
// A failed delete is logged and counted but does not stop the sweep; only a
// failed listing or a cancelled context returns an error.
func Sweep(ctx context.Context, store Store, prefixes []string, referenced map[string]struct{}, logger *slog.Logger) (SweepResult, error) {
	var result SweepResult
	var deleted, failed atomic.Int64

	for _, prefix := range prefixes {
		keys, err := store.List(ctx, prefix)
		if err != nil {
			return result, fmt.Errorf("media: sweep: %w", err)
		}
		result.Scanned += len(keys)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(sweepWorkers)
		for _, key := range keys {
			if _, ok := referenced[key]; ok {
				continue
			}
			g.Go(func() error {
				if err := store.Delete(gctx, key); err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					failed.Add(1)
					logger.Warn("failed to delete orphaned file",
						slog.String("key", key),
						slog.String("error", err.Error()),
					)
					return nil
				}
				deleted.Add(1)
				logger.Debug("deleted orphaned file", slog.String("key", key))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			result.Deleted, result.Failed = int(deleted.Load()), int(failed.Load())
			return result, fmt.Errorf("media: sweep cancelled: %w", err)
		}
	}

	result.Deleted, result.Failed = int(deleted.Load()), int(failed.Load())
	return result, nil
}
