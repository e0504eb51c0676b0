// Package artifacts persists the per-run evidence bundle: a manifest,
// the machine-readable evidence JSON, the rendered report and optionally
// the raw trades CSV. The ledger indexes bundles by ArtifactRef and
// re-checks file existence at read time.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"strategy-lab/internal/decision"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/execadjust"
	"strategy-lab/internal/reporting"
)

const (
	manifestFile = "manifest.json"
	evidenceFile = "evidence.json"
	reportFile   = "report.md"
	tradesFile   = "trades.csv"
)

// Writer writes run bundles under a root directory, one directory per run.
type Writer struct {
	root string
	now  func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithClock sets the clock used for manifest timestamps.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter creates a bundle writer rooted at dir.
func NewWriter(root string, opts ...WriterOption) *Writer {
	w := &Writer{
		root: root,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Manifest describes one run bundle.
type Manifest struct {
	RunID       string            `json:"run_id"`
	StrategyID  string            `json:"strategy_id"`
	GeneratedAt int64             `json:"generated_at"`
	Files       map[string]string `json:"files"` // name -> sha256 hex
}

// Evidence is the machine-readable counterpart of the rendered report.
type Evidence struct {
	RunID       string                     `json:"run_id"`
	StrategyID  string                     `json:"strategy_id"`
	Summary     *domain.AlgoSummary        `json:"summary"`
	Consistency *domain.ConsistencyRow     `json:"consistency"`
	Walkforward *domain.WalkforwardSummary `json:"walkforward"`
	Gate        *decision.GateResult       `json:"gate,omitempty"`
	Adjusted    *execadjust.Adjusted       `json:"execution_adjusted,omitempty"`
	Provenance  *domain.ProvenanceReport   `json:"provenance,omitempty"`
}

// Write persists the bundle for a run and returns its artifact ref.
// The trades CSV is written only when trades are provided; the ref then
// declares it so completeness checks require it.
func (w *Writer) Write(report *reporting.Report, trades []*domain.Trade) (domain.ArtifactRef, error) {
	if report == nil || report.RunID == "" {
		return domain.ArtifactRef{}, fmt.Errorf("%w: report with run id required", domain.ErrArtifactIncomplete)
	}

	runDir := filepath.Join(w.root, report.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("create run dir: %w", err)
	}

	manifest := Manifest{
		RunID:       report.RunID,
		StrategyID:  report.StrategyID,
		GeneratedAt: w.now().UnixMilli(),
		Files:       make(map[string]string),
	}

	// Evidence JSON.
	evidence := &Evidence{
		RunID:       report.RunID,
		StrategyID:  report.StrategyID,
		Summary:     report.Summary,
		Consistency: report.Consistency,
		Walkforward: report.Walkforward,
		Gate:        report.Gate,
		Adjusted:    report.ExecutionAdjusted,
		Provenance:  report.Provenance,
	}
	evidenceBytes, err := json.MarshalIndent(evidence, "", "  ")
	if err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("marshal evidence: %w", err)
	}
	if err := w.writeFile(runDir, evidenceFile, evidenceBytes, &manifest); err != nil {
		return domain.ArtifactRef{}, err
	}

	// Rendered report.
	reportBytes := []byte(reporting.RenderMarkdown(report))
	if err := w.writeFile(runDir, reportFile, reportBytes, &manifest); err != nil {
		return domain.ArtifactRef{}, err
	}

	// Trades CSV, only when trades exist.
	ref := domain.ArtifactRef{
		RunID:         report.RunID,
		EvidenceRunID: report.RunID,
		ManifestPath:  filepath.Join(runDir, manifestFile),
		EvidencePath:  filepath.Join(runDir, evidenceFile),
		ReportPath:    filepath.Join(runDir, reportFile),
	}
	if len(trades) > 0 {
		csvBytes := []byte(reporting.RenderTradesCSV(trades))
		if err := w.writeFile(runDir, tradesFile, csvBytes, &manifest); err != nil {
			return domain.ArtifactRef{}, err
		}
		ref.TradesCsvPath = filepath.Join(runDir, tradesFile)
	}

	// Manifest last, so it lists every file it hashes.
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(ref.ManifestPath, manifestBytes, 0o644); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("write manifest: %w", err)
	}

	return ref, nil
}

func (w *Writer) writeFile(runDir, name string, data []byte, manifest *Manifest) error {
	path := filepath.Join(runDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	sum := sha256.Sum256(data)
	manifest.Files[name] = hex.EncodeToString(sum[:])
	return nil
}

