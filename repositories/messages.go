package repositories

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"workroom/domain"
	apperrors "workroom/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Append(msg domain.Message, clientToken string) (domain.Message, error)
	Get(messageID uuid.UUID) (domain.Message, error)
	Update(msg domain.Message) error
	List(roomID uuid.UUID, cursor *string, newestFirst bool) ([]domain.Message, *string, error)
	LatestSequence(roomID uuid.UUID) (uint64, error)
	FindByToken(roomID uuid.UUID, clientToken string) (*domain.Message, error)
	TombstoneBatch(roomID uuid.UUID, afterSeq uint64, batchSize int) (uint64, int, bool, error)
	AddReaction(roomID uuid.UUID, reaction domain.Reaction) (bool, error)
	RemoveReaction(roomID uuid.UUID, messageID uuid.UUID, userID, kind string) (bool, error)
	ListReactions(messageID uuid.UUID) ([]domain.Reaction, error)
	UpsertReceipt(receipt domain.ReadReceipt) error
	ReadWatermark(roomID uuid.UUID, userID string) (uint64, error)
	ListReceipts(roomID uuid.UUID, upToSeq uint64) ([]domain.ReadReceipt, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// Message keys embed the per-room sequence number with 19-digit zero
// padding so a badger prefix scan yields messages in commit order.
// The per-room counter lives under its own key and is bumped in the
// same transaction as the message write: a crash can never leave a
// gap between the counter and the log.
func messageKey(roomID uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", roomID, seq))
}

func messagePrefix(roomID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomID))
}

func sequenceKey(roomID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("seq:%s", roomID))
}

// messageIndexKey resolves a message id to its sequence-ordered key.
func messageIndexKey(messageID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msgid:%s", messageID))
}

func idempotencyKey(roomID uuid.UUID, token string) []byte {
	return []byte(fmt.Sprintf("idem:%s:%s", roomID, token))
}

func reactionKey(messageID uuid.UUID, userID, kind string) []byte {
	return []byte(fmt.Sprintf("rx:%s:%s:%s", messageID, userID, kind))
}

func reactionPrefix(messageID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("rx:%s:", messageID))
}

func receiptKey(roomID, messageID uuid.UUID, userID string) []byte {
	return []byte(fmt.Sprintf("rcpt:%s:%s:%s", roomID, messageID, userID))
}

func receiptPrefix(roomID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("rcpt:%s:", roomID))
}

func watermarkKey(roomID uuid.UUID, userID string) []byte {
	return []byte(fmt.Sprintf("read:%s:%s", roomID, userID))
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

func readSeq(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = item.Value(func(value []byte) error {
		seq = binary.BigEndian.Uint64(value)
		return nil
	})
	return seq, err
}

// Append commits a message with the next per-room sequence number.
// The caller must hold the room's writer lock; the transaction makes
// counter bump, message write, id index, and idempotency marker
// atomic with respect to crashes.
func (m *MessageRepository) Append(msg domain.Message, clientToken string) (domain.Message, error) {
	err := withRetry(m.log, func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			seq, err := readSeq(txn, sequenceKey(msg.RoomID))
			if err != nil {
				return err
			}
			msg.Sequence = seq + 1
			bytes, err := marshal(msg)
			if err != nil {
				return err
			}
			key := messageKey(msg.RoomID, msg.Sequence)
			if err = txn.Set(key, bytes); err != nil {
				return err
			}
			if err = txn.Set(messageIndexKey(msg.ID), key); err != nil {
				return err
			}
			if err = txn.Set(sequenceKey(msg.RoomID), encodeSeq(msg.Sequence)); err != nil {
				return err
			}
			if clientToken != "" {
				id := msg.ID
				if err = txn.Set(idempotencyKey(msg.RoomID, clientToken), id[:]); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return msg, err
}

// FindByToken returns the message previously committed under a
// client idempotency token, or nil when the token is unseen.
func (m *MessageRepository) FindByToken(roomID uuid.UUID, clientToken string) (*domain.Message, error) {
	var msgID uuid.UUID
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idempotencyKey(roomID, clientToken))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			msgID, err = uuid.FromBytes(value)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msg, err := m.Get(msgID)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func getMessage(txn *badger.Txn, messageID uuid.UUID) (domain.Message, []byte, error) {
	var msg domain.Message
	idx, err := txn.Get(messageIndexKey(messageID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return msg, nil, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return msg, nil, err
	}
	var key []byte
	if err = idx.Value(func(value []byte) error {
		key = append([]byte(nil), value...)
		return nil
	}); err != nil {
		return msg, nil, err
	}
	item, err := txn.Get(key)
	if err != nil {
		return msg, nil, err
	}
	err = item.Value(func(value []byte) error {
		return unmarshal(value, &msg)
	})
	return msg, key, err
}

func (m *MessageRepository) Get(messageID uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		msg, _, err = getMessage(txn, messageID)
		return err
	})
	return msg, err
}

// Update rewrites a committed message in place (edit or tombstone).
// Id, room, and sequence are immutable.
func (m *MessageRepository) Update(msg domain.Message) error {
	bytes, err := marshal(msg)
	if err != nil {
		return err
	}
	return withRetry(m.log, func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			_, key, err := getMessage(txn, msg.ID)
			if err != nil {
				return err
			}
			return txn.Set(key, bytes)
		})
	})
}

// List pages through a room's log in sequence order. The cursor is
// the padded-sequence remainder of the last key served, the same
// resume contract a reconnecting client uses. Tombstones are
// included so clients can reconcile local caches.
func (m *MessageRepository) List(roomID uuid.UUID, cursor *string, newestFirst bool) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	prefix := messagePrefix(roomID)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = newestFirst
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch {
		case cursor != nil:
			seekKey = append(append([]byte(nil), prefix...), []byte(*cursor)...)
		case newestFirst:
			// Reverse scans start past the largest possible sequence.
			seekKey = append(append([]byte(nil), prefix...), []byte("9999999999999999999")...)
		default:
			seekKey = prefix
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			var msg domain.Message
			if err := item.Value(func(value []byte) error {
				return unmarshal(value, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 {
		return nil, nil, nil
	}
	return messages, &lastKey, nil
}

func (m *MessageRepository) LatestSequence(roomID uuid.UUID) (uint64, error) {
	var seq uint64
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		seq, err = readSeq(txn, sequenceKey(roomID))
		return err
	})
	return seq, err
}

// TombstoneBatch tombstones up to batchSize messages with sequence
// numbers above afterSeq, in one transaction. Returns the last
// sequence processed, how many were newly tombstoned, and whether the
// end of the log was reached. Each batch is atomic, so cancellation
// between batches leaves no half-deleted message.
func (m *MessageRepository) TombstoneBatch(roomID uuid.UUID, afterSeq uint64, batchSize int) (uint64, int, bool, error) {
	lastSeq := afterSeq
	count := 0
	done := true
	err := withRetry(m.log, func() error {
		lastSeq, count, done = afterSeq, 0, true
		return m.db.Update(func(txn *badger.Txn) error {
			prefix := messagePrefix(roomID)
			options := badger.DefaultIteratorOptions
			it := txn.NewIterator(options)
			defer it.Close()
			seekKey := messageKey(roomID, afterSeq+1)
			for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
				if count == batchSize {
					done = false
					return nil
				}
				item := it.Item()
				var msg domain.Message
				if err := item.Value(func(value []byte) error {
					return unmarshal(value, &msg)
				}); err != nil {
					return err
				}
				lastSeq = msg.Sequence
				if msg.IsTombstone() {
					continue
				}
				bytes, err := marshal(msg.Tombstone())
				if err != nil {
					return err
				}
				if err = txn.Set(append([]byte(nil), item.Key()...), bytes); err != nil {
					return err
				}
				count++
			}
			return nil
		})
	})
	return lastSeq, count, done, err
}

// AddReaction stores the (message, user, kind) triple if absent.
// Returns false when the triple already existed.
func (m *MessageRepository) AddReaction(roomID uuid.UUID, reaction domain.Reaction) (bool, error) {
	added := false
	err := withRetry(m.log, func() error {
		added = false
		return m.db.Update(func(txn *badger.Txn) error {
			key := reactionKey(reaction.MessageID, reaction.UserID, reaction.Kind)
			_, err := txn.Get(key)
			if err == nil {
				return nil
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			bytes, err := marshal(reaction)
			if err != nil {
				return err
			}
			if err = txn.Set(key, bytes); err != nil {
				return err
			}
			added = true
			return nil
		})
	})
	return added, err
}

func (m *MessageRepository) RemoveReaction(roomID uuid.UUID, messageID uuid.UUID, userID, kind string) (bool, error) {
	removed := false
	err := withRetry(m.log, func() error {
		removed = false
		return m.db.Update(func(txn *badger.Txn) error {
			key := reactionKey(messageID, userID, kind)
			_, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if err = txn.Delete(key); err != nil {
				return err
			}
			removed = true
			return nil
		})
	})
	return removed, err
}

func (m *MessageRepository) ListReactions(messageID uuid.UUID) ([]domain.Reaction, error) {
	var reactions []domain.Reaction
	prefix := reactionPrefix(messageID)
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var reaction domain.Reaction
			if err := it.Item().Value(func(value []byte) error {
				return unmarshal(value, &reaction)
			}); err != nil {
				return err
			}
			reactions = append(reactions, reaction)
		}
		return nil
	})
	return reactions, err
}

// UpsertReceipt records a read receipt (last write wins) and advances
// the reader's watermark when the message is newer than it.
func (m *MessageRepository) UpsertReceipt(receipt domain.ReadReceipt) error {
	bytes, err := marshal(receipt)
	if err != nil {
		return err
	}
	return withRetry(m.log, func() error {
		return m.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(receiptKey(receipt.RoomID, receipt.MessageID, receipt.UserID), bytes); err != nil {
				return err
			}
			mark, err := readSeq(txn, watermarkKey(receipt.RoomID, receipt.UserID))
			if err != nil {
				return err
			}
			if receipt.Sequence > mark {
				return txn.Set(watermarkKey(receipt.RoomID, receipt.UserID), encodeSeq(receipt.Sequence))
			}
			return nil
		})
	})
}

// ReadWatermark returns the highest sequence number the user has
// read in the room. Unread count = latest sequence - watermark.
func (m *MessageRepository) ReadWatermark(roomID uuid.UUID, userID string) (uint64, error) {
	var mark uint64
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		mark, err = readSeq(txn, watermarkKey(roomID, userID))
		return err
	})
	return mark, err
}

func (m *MessageRepository) ListReceipts(roomID uuid.UUID, upToSeq uint64) ([]domain.ReadReceipt, error) {
	var receipts []domain.ReadReceipt
	prefix := receiptPrefix(roomID)
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var receipt domain.ReadReceipt
			if err := it.Item().Value(func(value []byte) error {
				return unmarshal(value, &receipt)
			}); err != nil {
				return err
			}
			if receipt.Sequence <= upToSeq {
				receipts = append(receipts, receipt)
			}
		}
		return nil
	})
	return receipts, err
}
