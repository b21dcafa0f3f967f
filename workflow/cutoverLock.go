package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/frh3ddy/farmacia-ops-sub000/config"
	"github.com/frh3ddy/farmacia-ops-sub000/models"
)

const cutoverLockTTL = 5 * time.Minute

// acquireCutoverLock serializes batch execution per cutover across processes.
// A held lock means another worker is executing; the caller reports it as
// blocked rather than waiting.
func acquireCutoverLock(ctx context.Context, cutoverId string) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		// Redis is optional in local development; the DB unique keys still
		// keep replays idempotent.
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, "cutover:"+cutoverId, cutoverLockTTL, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, models.NewMigrationBlockedError("another worker is executing this cutover")
		}
		return nil, models.NewStorageError(err)
	}
	return lock, nil
}

func releaseCutoverLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		config.LogError(config.GetLogger(), "cutoverLock.go", "releaseCutoverLock", "Release", lock.Key(), err)
	}
}
