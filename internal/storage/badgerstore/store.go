// Package badgerstore implements the persistent-store collaborator
// interfaces on BadgerDB. Keys embed a 19-digit zero-padded timestamp so a
// prefix scan yields chronological order, with a UUID tail as a collision
// disconnector.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/avencel/studyhub/internal/domain"
)

type Store struct {
	db *badger.DB
}

func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open DB; used by tests sharing a temp dir.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func userKey(id domain.UserID) []byte {
	return []byte("user:" + id)
}

func friendKey(a, b domain.UserID) []byte {
	return []byte(fmt.Sprintf("friend:%s:%s", a, b))
}

func memberKey(roomID domain.RoomID, id domain.UserID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", roomID, id))
}

func countKey(roomID domain.RoomID) []byte {
	return []byte("roomcount:" + roomID)
}

// Lookup implements core.UserProfileStore.
func (s *Store) Lookup(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var user domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &user)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", id, err)
	}
	return &user, nil
}

// SaveUser persists a profile record. The CRUD surface normally owns this;
// kept for wiring and tests.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.ID), b)
	})
}

// ListAccepted implements core.FriendshipStore. Edges are stored in both
// directions so one prefix scan per user suffices.
func (s *Store) ListAccepted(ctx context.Context, id domain.UserID) ([]domain.UserID, error) {
	var out []domain.UserID
	prefix := []byte(fmt.Sprintf("friend:%s:", id))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			out = append(out, domain.UserID(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list friends of %s: %w", id, err)
	}
	return out, nil
}

// AreFriends implements core.FriendshipStore.
func (s *Store) AreFriends(ctx context.Context, a, b domain.UserID) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(friendKey(a, b))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("friendship %s/%s: %w", a, b, err)
	}
	return true, nil
}

// AddFriendship records an accepted edge, both directions.
func (s *Store) AddFriendship(ctx context.Context, a, b domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(friendKey(a, b), []byte("accepted")); err != nil {
			return err
		}
		return txn.Set(friendKey(b, a), []byte("accepted"))
	})
}

// IsMember implements core.RoomMembershipStore.
func (s *Store) IsMember(ctx context.Context, id domain.UserID, roomID domain.RoomID) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(roomID, id))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("membership %s in %s: %w", id, roomID, err)
	}
	return true, nil
}

// AddMember records persisted room membership.
func (s *Store) AddMember(ctx context.Context, id domain.UserID, roomID domain.RoomID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(memberKey(roomID, id), []byte("1"))
	})
}

// SetActiveCount implements core.RoomMembershipStore.
func (s *Store) SetActiveCount(ctx context.Context, roomID domain.RoomID, n int) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(countKey(roomID), buf[:])
	})
}

// TouchRoom implements core.RoomMembershipStore.
func (s *Store) TouchRoom(ctx context.Context, roomID domain.RoomID, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("roomactive:"+roomID), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

// LastActive reads the room's last activity timestamp, zero when never touched.
func (s *Store) LastActive(ctx context.Context, roomID domain.RoomID) (time.Time, error) {
	var at time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("roomactive:" + roomID))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			parsed, perr := time.Parse(time.RFC3339Nano, string(v))
			at = parsed
			return perr
		})
	})
	if err == badger.ErrKeyNotFound {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last active of %s: %w", roomID, err)
	}
	return at, nil
}

// ActiveCount reads the last persisted count back; dashboards consume it.
func (s *Store) ActiveCount(ctx context.Context, roomID domain.RoomID) (int, error) {
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(countKey(roomID))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			n = int(binary.BigEndian.Uint64(v))
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("active count of %s: %w", roomID, err)
	}
	return n, nil
}
