// Package dataset loads the JSON input files for a pipeline run and
// memoizes the decoded collections so stages can re-read them cheaply.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// Input file names expected under the run's input directory.
const (
	FileTransactions    = "transactions.json"
	FileRawTransactions = "transactions_raw.json"
	FileProfiles        = "profiles.json"
	FileAuthEvents      = "auth_events.json"
	FileNetworkEvents   = "network_events.json"
)

// Source is a handle to one run's input directory. It is created by the
// pipeline and passed down to the stages that need data; nothing is
// loaded until a stage asks for it. Safe for concurrent use.
type Source struct {
	dir  string
	memo *lruCache
}

// New returns a Source rooted at dir.
func New(dir string) *Source {
	return &Source{dir: dir, memo: newLRUCache(16)}
}

// Dir returns the input directory this source reads from.
func (s *Source) Dir() string { return s.dir }

// Transactions loads the pre-aggregated transaction file (mode b1).
func (s *Source) Transactions() ([]domain.Transaction, error) {
	if v, ok := s.memo.get(FileTransactions); ok {
		return v.([]domain.Transaction), nil
	}
	var txns []domain.Transaction
	if err := s.decode(FileTransactions, &txns); err != nil {
		return nil, err
	}
	s.memo.set(FileTransactions, txns)
	return txns, nil
}

// RawTransactions loads the raw transaction file (mode b2). Aggregate
// columns are absent in raw files and decode as zero.
func (s *Source) RawTransactions() ([]domain.Transaction, error) {
	if v, ok := s.memo.get(FileRawTransactions); ok {
		return v.([]domain.Transaction), nil
	}
	var txns []domain.Transaction
	if err := s.decode(FileRawTransactions, &txns); err != nil {
		return nil, err
	}
	s.memo.set(FileRawTransactions, txns)
	return txns, nil
}

// TransactionsForMode loads the transaction file that matches the run mode.
func (s *Source) TransactionsForMode(mode string) ([]domain.Transaction, error) {
	if mode == domain.ModeRawEvents {
		return s.RawTransactions()
	}
	return s.Transactions()
}

// Profiles loads the user profile file. Required in both modes.
func (s *Source) Profiles() ([]domain.Profile, error) {
	if v, ok := s.memo.get(FileProfiles); ok {
		return v.([]domain.Profile), nil
	}
	var profiles []domain.Profile
	if err := s.decode(FileProfiles, &profiles); err != nil {
		return nil, err
	}
	s.memo.set(FileProfiles, profiles)
	return profiles, nil
}

// AuthEvents loads the authentication event file (mode b2).
func (s *Source) AuthEvents() ([]domain.AuthEvent, error) {
	if v, ok := s.memo.get(FileAuthEvents); ok {
		return v.([]domain.AuthEvent), nil
	}
	var events []domain.AuthEvent
	if err := s.decode(FileAuthEvents, &events); err != nil {
		return nil, err
	}
	s.memo.set(FileAuthEvents, events)
	return events, nil
}

// NetworkEvents loads the network event file (mode b2).
func (s *Source) NetworkEvents() ([]domain.NetworkEvent, error) {
	if v, ok := s.memo.get(FileNetworkEvents); ok {
		return v.([]domain.NetworkEvent), nil
	}
	var events []domain.NetworkEvent
	if err := s.decode(FileNetworkEvents, &events); err != nil {
		return nil, err
	}
	s.memo.set(FileNetworkEvents, events)
	return events, nil
}

func (s *Source) decode(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
