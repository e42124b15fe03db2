package repositories

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"postkeeper/app/models"
)

// BadgerImportLedger implements ImportLedger using BadgerDB
type BadgerImportLedger struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerImportLedger creates a new BadgerImportLedger
func NewBadgerImportLedger(db *badger.DB) *BadgerImportLedger {
	return &BadgerImportLedger{db: db, now: time.Now}
}

// Lookup returns the ledger entry for the external record, or nil
func (l *BadgerImportLedger) Lookup(ctx context.Context, source string, externalID int) (*models.ImportEntry, error) {
	var entry models.ImportEntry
	var found bool
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getEntity(txn, importKey(source, externalID), &entry)
		return err
	})
	if err != nil {
		return nil, translate("lookup import", err)
	}
	if !found {
		return nil, nil
	}
	return &entry, nil
}

// Record stores or replaces the ledger entry
func (l *BadgerImportLedger) Record(ctx context.Context, entry models.ImportEntry) error {
	if entry.ImportedAt.IsZero() {
		entry.ImportedAt = l.now()
	}
	err := l.db.Update(func(txn *badger.Txn) error {
		data, err := marshalEntity(entry)
		if err != nil {
			return err
		}
		return txn.Set(importKey(entry.Source, entry.ExternalID), data)
	})
	return translate("record import", err)
}
