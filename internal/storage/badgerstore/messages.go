package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/avencel/studyhub/internal/domain"
)

func messageKey(msg *domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", msg.Channel(), msg.SentAt.UnixNano(), msg.ID))
}

func notifKey(n *domain.Notification) []byte {
	return []byte(fmt.Sprintf("notif:%s:%019d:%s", n.UserID, n.CreatedAt.UnixNano(), n.ID))
}

// Append implements core.MessageStore. A missing id gets one assigned.
func (s *Store) Append(ctx context.Context, msg *domain.Message) (domain.MessageID, error) {
	if msg.ID == "" {
		msg.ID = domain.MessageID(uuid.NewString())
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), b)
	})
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	return msg.ID, nil
}

// MarkRead implements core.MessageStore: a bulk flip of the read flag on
// every unread message from counterparty to reader within their channel.
func (s *Store) MarkRead(ctx context.Context, readerID, counterpartyID domain.UserID) (int, error) {
	prefix := []byte(fmt.Sprintf("msg:%s:", domain.DirectChannel(readerID, counterpartyID)))
	updated := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var msg domain.Message
			if err := item.Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			if msg.SenderID != counterpartyID || msg.Read {
				continue
			}
			msg.Read = true
			b, err := json.Marshal(&msg)
			if err != nil {
				return err
			}
			if err := txn.Set(item.KeyCopy(nil), b); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark read %s<-%s: %w", readerID, counterpartyID, err)
	}
	return updated, nil
}

// ChannelMessages returns a channel's messages in chronological order.
func (s *Store) ChannelMessages(ctx context.Context, ch domain.ChannelID) ([]domain.Message, error) {
	prefix := []byte(fmt.Sprintf("msg:%s:", ch))
	var out []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("channel messages %s: %w", ch, err)
	}
	return out, nil
}

// AppendNotification implements core.NotificationStore.
func (s *Store) AppendNotification(ctx context.Context, n *domain.Notification) (domain.NotificationID, error) {
	if n.ID == "" {
		n.ID = domain.NotificationID(uuid.NewString())
	}
	b, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notifKey(n), b)
	})
	if err != nil {
		return "", fmt.Errorf("append notification: %w", err)
	}
	return n.ID, nil
}

// ListPending implements core.NotificationStore.
func (s *Store) ListPending(ctx context.Context, id domain.UserID) ([]domain.Notification, error) {
	prefix := []byte(fmt.Sprintf("notif:%s:", id))
	var out []domain.Notification
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n domain.Notification
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &n)
			}); err != nil {
				return err
			}
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications %s: %w", id, err)
	}
	return out, nil
}
