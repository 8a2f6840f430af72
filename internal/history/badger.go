package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
)

const (
	badgerMsgPrefix = "msg:"
	badgerIdxPrefix = "idx:"
)

// BadgerStore keeps history in an embedded BadgerDB.
//
// Messages live under "msg:{created_at_unix_nano_padded}:{id}" so a reverse
// prefix scan yields newest first; "idx:{id}" points back at that key for edits.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(msg domain.ChatMessage) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", badgerMsgPrefix, msg.CreatedAt.UnixNano(), msg.ID))
}

func (s *BadgerStore) Append(ctx context.Context, msg domain.ChatMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := badgerKey(msg)
	idx := []byte(badgerIdxPrefix + msg.ID)

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(idx); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(idx, key)
	})
}

func (s *BadgerStore) Update(ctx context.Context, msg domain.ChatMessage) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerIdxPrefix + msg.ID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		current, err := txn.Get(key)
		if err != nil {
			return err
		}
		var stored domain.ChatMessage
		if err := current.Value(func(v []byte) error {
			return json.Unmarshal(v, &stored)
		}); err != nil {
			return err
		}

		stored.Body = msg.Body
		stored.EditedAt = msg.EditedAt
		value, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerMsgPrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then walk backwards.
		for it.Seek(append(prefix, 0xff)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var msg domain.ChatMessage
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return ErrStoreClosed
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
