// Package fixstore provides a persistent fix.MessageStore backed by
// Badger, so sequence numbers and the outbound message history survive a
// daemon restart.
package fixstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"fixengine/internal/fix"
)

// keySeparator joins a session's key prefix to its sub-keys. A session ID
// never contains it, since SessionID.String() uses "->" between CompIDs.
const keySeparator = "|"

const (
	suffixNextSender   = "next_sender"
	suffixNextTarget   = "next_target"
	suffixCreationTime = "creation_time"
	suffixMessage      = "msg"
)

// BadgerStore is a fix.MessageStore backed by a single shared *badger.DB.
// Every session's keys are namespaced by its SessionID so one on-disk
// database serves the whole registry.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

var _ fix.MessageStore = (*BadgerStore)(nil)

// Factory is a fix.MessageStoreFactory handing out BadgerStores that all
// share the same underlying database.
type Factory struct {
	db *badger.DB
}

var _ fix.MessageStoreFactory = (*Factory)(nil)

// Open opens (or creates) a Badger database at path and returns a Factory
// for handing out per-session BadgerStores. The caller owns the returned
// Factory's database and must call Close when done.
func Open(path string) (*Factory, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}

	return &Factory{db: db}, nil
}

// Close closes the underlying database.
func (f *Factory) Close() error {
	if err := f.db.Close(); err != nil {
		return fmt.Errorf("close badger store: %w", err)
	}
	return nil
}

// Create returns a BadgerStore scoped to sessionID. If the session has no
// prior state in the database, its counters are initialized to 1 and its
// CreationTime to now.
func (f *Factory) Create(sessionID fix.SessionID) (fix.MessageStore, error) {
	s := &BadgerStore{db: f.db, prefix: sessionID.String() + keySeparator}

	initialized, err := s.hasCreationTime()
	if err != nil {
		return nil, err
	}
	if !initialized {
		if err := s.Reset(time.Now()); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *BadgerStore) key(suffix string) []byte {
	return []byte(s.prefix + suffix)
}

func (s *BadgerStore) messageKey(seqNum uint64) []byte {
	// Zero-padded decimal keeps lexical and numeric iteration order aligned.
	return []byte(fmt.Sprintf("%s%s%s%020d", s.prefix, suffixMessage, keySeparator, seqNum))
}

func (s *BadgerStore) hasCreationTime() (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, getErr := txn.Get(s.key(suffixCreationTime))
		return getErr
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check creation time: %w", err)
	}
	return true, nil
}

func (s *BadgerStore) getUint64(suffix string) (uint64, error) {
	var val uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(s.key(suffix))
		if getErr != nil {
			return getErr
		}
		return item.Value(func(v []byte) error {
			val = binary.BigEndian.Uint64(v)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", suffix, err)
	}
	return val, nil
}

func (s *BadgerStore) setUint64(suffix string, val uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, val)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(suffix), buf)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", suffix, err)
	}
	return nil
}

func (s *BadgerStore) NextSenderMsgSeqNum() (uint64, error) {
	return s.getUint64(suffixNextSender)
}

func (s *BadgerStore) NextTargetMsgSeqNum() (uint64, error) {
	return s.getUint64(suffixNextTarget)
}

func (s *BadgerStore) SetNextSenderMsgSeqNum(next uint64) error {
	return s.setUint64(suffixNextSender, next)
}

func (s *BadgerStore) SetNextTargetMsgSeqNum(next uint64) error {
	return s.setUint64(suffixNextTarget, next)
}

func (s *BadgerStore) IncrNextSenderMsgSeqNum() error {
	next, err := s.NextSenderMsgSeqNum()
	if err != nil {
		return err
	}
	return s.setUint64(suffixNextSender, next+1)
}

func (s *BadgerStore) IncrNextTargetMsgSeqNum() error {
	next, err := s.NextTargetMsgSeqNum()
	if err != nil {
		return err
	}
	return s.setUint64(suffixNextTarget, next+1)
}

func (s *BadgerStore) CreationTime() (time.Time, error) {
	var t time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(s.key(suffixCreationTime))
		if getErr != nil {
			return getErr
		}
		return item.Value(func(v []byte) error {
			return t.UnmarshalBinary(v)
		})
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("read creation time: %w", err)
	}
	return t, nil
}

func (s *BadgerStore) SaveMessage(seqNum uint64, msg []byte) error {
	cp := make([]byte, len(msg))
	copy(cp, msg)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.messageKey(seqNum), cp)
	})
	if err != nil {
		return fmt.Errorf("save message %d: %w", seqNum, err)
	}
	return nil
}

func (s *BadgerStore) GetMessages(begin, end uint64) ([]fix.StoredMessage, error) {
	var out []fix.StoredMessage

	startKey := s.messageKey(begin)
	prefix := []byte(s.prefix + suffixMessage + keySeparator)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(startKey); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			seq, parseErr := parseMessageKey(item.Key(), prefix)
			if parseErr != nil {
				return parseErr
			}
			if seq > end {
				break
			}

			var bytesCopy []byte
			if valErr := item.Value(func(v []byte) error {
				bytesCopy = append([]byte(nil), v...)
				return nil
			}); valErr != nil {
				return valErr
			}

			out = append(out, fix.StoredMessage{SeqNum: seq, Bytes: bytesCopy})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get messages [%d,%d]: %w", begin, end, err)
	}

	return out, nil
}

func parseMessageKey(key, prefix []byte) (uint64, error) {
	if len(key) <= len(prefix) {
		return 0, fmt.Errorf("malformed message key %q", key)
	}
	var seq uint64
	if _, err := fmt.Sscanf(string(key[len(prefix):]), "%020d", &seq); err != nil {
		return 0, fmt.Errorf("parse sequence from key %q: %w", key, err)
	}
	return seq, nil
}

func (s *BadgerStore) Refresh() error {
	// Badger reads always observe the latest committed state; there is no
	// separate in-memory cache to reload.
	return nil
}

func (s *BadgerStore) Reset(now time.Time) error {
	if err := s.deleteMessages(); err != nil {
		return err
	}

	ts, err := now.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal creation time: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if setErr := txn.Set(s.key(suffixCreationTime), ts); setErr != nil {
			return setErr
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, 1)
		if setErr := txn.Set(s.key(suffixNextSender), buf); setErr != nil {
			return setErr
		}
		return txn.Set(s.key(suffixNextTarget), buf)
	})
	if err != nil {
		return fmt.Errorf("reset session state: %w", err)
	}
	return nil
}

func (s *BadgerStore) deleteMessages() error {
	prefix := []byte(s.prefix + suffixMessage + keySeparator)

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, append([]byte(nil), it.Item().Key()...))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("list messages to delete: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if delErr := txn.Delete(k); delErr != nil {
				return delErr
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}
