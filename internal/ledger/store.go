package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"strategy-lab/internal/domain"
)

// Store persists campaign ledgers as JSON files under a root directory,
// one file per campaign. Saves are atomic (write temp, then rename) so a
// crash mid-save never leaves a half-written ledger.
type Store struct {
	root string
	now  func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the time source used to stamp UpdatedAt on save.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a ledger store rooted at dir.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{
		root: root,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// path returns the ledger file location for a campaign.
func (s *Store) path(campaignID string) string {
	return filepath.Join(s.root, campaignID+".json")
}

// Save writes the ledger durably, stamping UpdatedAt.
func (s *Store) Save(l *domain.CampaignLedger) error {
	if l == nil || l.CampaignID == "" {
		return fmt.Errorf("ledger requires a campaign id")
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create ledger root: %w", err)
	}

	l.UpdatedAt = s.now().UnixMilli()

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, l.CampaignID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp ledger file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(l.CampaignID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger file: %w", err)
	}

	return nil
}

// Load reads a campaign's ledger. A campaign that was never saved returns
// (nil, nil) rather than an error, so callers can branch on resumption.
func (s *Store) Load(campaignID string) (*domain.CampaignLedger, error) {
	data, err := os.ReadFile(s.path(campaignID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	var l domain.CampaignLedger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse ledger file: %w", err)
	}

	// Maps are nil after decoding an old or hand-trimmed file; mutations
	// assume they exist.
	if l.Strategies == nil {
		l.Strategies = make(map[string]*domain.StrategyProgress)
	}
	if l.Attempts == nil {
		l.Attempts = make(map[string]*domain.Attempt)
	}
	if l.RunsByStrategy == nil {
		l.RunsByStrategy = make(map[string][]string)
	}

	return &l, nil
}

// ArtifactRefComplete reports whether every required path in the ref
// exists on disk right now. Manifest, evidence and report are always
// required; the trades CSV only when declared. Existence is checked at
// call time, never cached.
func ArtifactRefComplete(ref domain.ArtifactRef) bool {
	required := []string{ref.ManifestPath, ref.EvidencePath, ref.ReportPath}
	if ref.TradesCsvPath != "" {
		required = append(required, ref.TradesCsvPath)
	}

	for _, path := range required {
		if path == "" {
			return false
		}
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}
