// Package store persists ledger record history per user identity.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/kvstore"
)

// keyPrefix namespaces record lists per identity in the underlying KV store.
const keyPrefix = "khatalens_data_"

// RecordStore reads and writes each user's ledger history as one JSON array,
// newest record first. Appends rewrite the whole array: last writer wins, no
// merge. Unreadable or corrupt stored data is treated as an empty history
// rather than an error, so a bad blob can never block the scan flow.
type RecordStore struct {
	kv  kvstore.KV
	log zerolog.Logger
}

// New creates a RecordStore over the given KV backend.
func New(kv kvstore.KV, log zerolog.Logger) *RecordStore {
	return &RecordStore{kv: kv, log: log}
}

// Load returns the stored records for username, newest first. Missing data,
// a failed read, or malformed JSON all yield an empty slice.
func (s *RecordStore) Load(username string) []domain.LedgerRecord {
	raw, ok, err := s.kv.Get(keyPrefix + username)
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("Failed to load records")
		return []domain.LedgerRecord{}
	}
	if !ok {
		return []domain.LedgerRecord{}
	}

	var records []domain.LedgerRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("Stored records are corrupt, treating as empty")
		return []domain.LedgerRecord{}
	}
	return records
}

// Append prepends record to username's history and writes the whole list
// back. It returns the updated list.
func (s *RecordStore) Append(username string, record domain.LedgerRecord) ([]domain.LedgerRecord, error) {
	current := s.Load(username)
	updated := append([]domain.LedgerRecord{record}, current...)

	data, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("Append: marshal records: %w", err)
	}
	if err := s.kv.Set(keyPrefix+username, string(data)); err != nil {
		return nil, fmt.Errorf("Append: write records: %w", err)
	}
	return updated, nil
}
