/*
gateway.go - Persistence interface for the aggregate state

PURPOSE:
  Defines the boundary between the engine and durable storage. The engine
  only needs two things: load whatever was last saved, and save the
  complete current state (never a delta).

CONTRACT:
  Load:  returns ErrNoSavedState if nothing was ever saved,
         a *MalformedStateError if stored data fails to parse,
         any other error for I/O failures.
  Save:  persists the full State. Called after every successful mutation,
         asynchronously, by the Persister.

RECOVERY:
  LoadOrBootstrap maps "nothing saved" and "malformed" to Bootstrap().
  Other errors propagate: falling back on an I/O error would overwrite
  real data with the seed on the next save.

IMPLEMENTATIONS:
  - pos/store/memory.go: In-memory (tests/dev)
  - store/sqlite/sqlite.go: SQLite tables
  - store/redisstate/redis.go: One JSON document under a key

SEE ALSO:
  - persister.go: Async save loop
  - codec.go: JSON document form used by memory and redis
*/
package pos

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Gateway loads and saves the whole aggregate.
type Gateway interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
}

// LoadOrBootstrap loads the last saved state or falls back to Bootstrap()
// when nothing is saved or the saved data is unreadable.
func LoadOrBootstrap(ctx context.Context, gw Gateway, log *zap.Logger) (*State, error) {
	s, err := gw.Load(ctx)
	switch {
	case err == nil:
		log.Info("loaded saved state",
			zap.Int("products", len(s.Products)),
			zap.Int("clients", len(s.Clients)),
			zap.Int("sales", len(s.Sales)),
			zap.Int("payments", len(s.Payments)))
		return s, nil
	case errors.Is(err, ErrNoSavedState):
		log.Info("no saved state, starting from bootstrap data")
		return Bootstrap(), nil
	case errors.Is(err, ErrMalformedState):
		log.Warn("saved state is malformed, starting from bootstrap data", zap.Error(err))
		return Bootstrap(), nil
	default:
		return nil, err
	}
}
