package hub

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// Sweeper periodically purges stale presence and recomputes active-member
// counts for rooms whose roster changed. Each tick works over a bounded
// batch of rooms so a large room set cannot stall other work.
type Sweeper struct {
	presence *PresenceTracker
	calls    *CallCoordinator
	members  core.RoomMembershipStore
	interval time.Duration
	batch    int
	cursor   int
}

func NewSweeper(presence *PresenceTracker, calls *CallCoordinator, members core.RoomMembershipStore, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 256
	}
	return &Sweeper{
		presence: presence,
		calls:    calls,
		members:  members,
		interval: interval,
		batch:    batch,
	}
}

// Run loops until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Str("module", "hub.sweeper").Dur("interval", s.interval).Msg("sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "hub.sweeper").Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one tick: prune up to batch rooms, persist changed counts and
// clear orphaned call participants.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()
	rooms := s.presence.RoomIDs()
	// Stable order keeps the batch cursor meaningful across ticks.
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	if len(rooms) == 0 {
		s.cursor = 0
	} else {
		if s.cursor >= len(rooms) {
			s.cursor = 0
		}
		end := s.cursor + s.batch
		if end > len(rooms) {
			end = len(rooms)
		}
		for _, roomID := range rooms[s.cursor:end] {
			s.sweepRoom(ctx, roomID, now)
		}
		s.cursor = end % max(len(rooms), 1)
	}

	if n := s.calls.PruneOrphans(ctx); n > 0 {
		log.Info().Str("module", "hub.sweeper").Int("pruned", n).Msg("orphaned call participants removed")
	}
}

func (s *Sweeper) sweepRoom(ctx context.Context, roomID domain.RoomID, now time.Time) {
	changed, count := s.presence.Prune(roomID, now)
	if !changed {
		return
	}
	log.Info().Str("module", "hub.sweeper").Str("room", string(roomID)).
		Int("active", count).Msg("pruned stale presence")
	if err := s.members.SetActiveCount(ctx, roomID, count); err != nil {
		log.Warn().Err(err).Str("module", "hub.sweeper").
			Str("room", string(roomID)).Msg("persist active count")
	}
}
