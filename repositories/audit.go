package repositories

import (
	"fmt"
	"log/slog"

	"workroom/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IAuditRepository interface {
	Store(entry domain.AuditEntry) error
	ListByRoom(roomID uuid.UUID) ([]domain.AuditEntry, error)
}

type AuditRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewAuditRepository(db *badger.DB, log *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, log: log}
}

// Audit keys use a padded timestamp so entries read back in order.
func auditKey(entry domain.AuditEntry) []byte {
	return []byte(fmt.Sprintf("audit:%s:%019d:%s", entry.RoomID, entry.At.UnixNano(), entry.Action))
}

func (r *AuditRepository) Store(entry domain.AuditEntry) error {
	bytes, err := marshal(entry)
	if err != nil {
		return err
	}
	return withRetry(r.log, func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			return txn.Set(auditKey(entry), bytes)
		})
	})
}

func (r *AuditRepository) ListByRoom(roomID uuid.UUID) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	prefix := []byte(fmt.Sprintf("audit:%s:", roomID))
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry domain.AuditEntry
			if err := it.Item().Value(func(value []byte) error {
				return unmarshal(value, &entry)
			}); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}
