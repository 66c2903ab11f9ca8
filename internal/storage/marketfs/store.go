// Package marketfs implements file-based JSON storage for price histories,
// factor histories, portfolio snapshots and risk reports.
package marketfs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/enori/stock-skills/internal/common"
	"github.com/enori/stock-skills/internal/interfaces"
	"github.com/enori/stock-skills/internal/models"
)

// Store provides file-based JSON storage rooted at one directory.
//
//	<path>/prices/<symbol>.json
//	<path>/factors/<factor>.json
//	<path>/portfolios/<name>.json
//	<path>/reports/<id>.json
type Store struct {
	basePath      string
	pricesDir     string
	factorsDir    string
	portfoliosDir string
	reportsDir    string
	logger        *common.Logger
}

var (
	_ interfaces.PriceHistoryStore = (*Store)(nil)
	_ interfaces.PortfolioStore    = (*Store)(nil)
	_ interfaces.ReportStore       = (*Store)(nil)
)

// NewStore opens (creating if needed) a file store at path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	s := &Store{
		basePath:      path,
		pricesDir:     filepath.Join(path, "prices"),
		factorsDir:    filepath.Join(path, "factors"),
		portfoliosDir: filepath.Join(path, "portfolios"),
		reportsDir:    filepath.Join(path, "reports"),
		logger:        logger,
	}
	for _, dir := range []string{s.pricesDir, s.factorsDir, s.portfoliosDir, s.reportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	logger.Debug().Str("path", path).Msg("MarketFS store opened")
	return s, nil
}

// DataPath returns the base data path.
func (s *Store) DataPath() string {
	return s.basePath
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// --- PriceHistoryStore ---

// GetPriceHistory reads the stored history for symbol.
func (s *Store) GetPriceHistory(_ context.Context, symbol string) (*models.PriceHistory, error) {
	var h models.PriceHistory
	if err := readJSON(s.pricesDir, symbol, &h); err != nil {
		return nil, fmt.Errorf("price history for '%s': %w", symbol, err)
	}
	if h.Symbol == "" {
		h.Symbol = symbol
	}
	return &h, nil
}

// SavePriceHistory writes history, replacing any stored version.
func (s *Store) SavePriceHistory(_ context.Context, history *models.PriceHistory) error {
	if strings.TrimSpace(history.Symbol) == "" {
		return fmt.Errorf("price history has no symbol")
	}
	if err := writeJSON(s.pricesDir, history.Symbol, history); err != nil {
		return fmt.Errorf("failed to save price history: %w", err)
	}
	s.logger.Debug().Str("symbol", history.Symbol).Int("points", len(history.Points)).Msg("Price history saved")
	return nil
}

// GetFactorHistory reads the stored level series for factor.
func (s *Store) GetFactorHistory(_ context.Context, factor string) (*models.FactorHistory, error) {
	var h models.FactorHistory
	if err := readJSON(s.factorsDir, factor, &h); err != nil {
		return nil, fmt.Errorf("factor history for '%s': %w", factor, err)
	}
	if h.Factor == "" {
		h.Factor = factor
	}
	return &h, nil
}

// SaveFactorHistory writes a factor series. The name must be a valid factor name.
func (s *Store) SaveFactorHistory(_ context.Context, history *models.FactorHistory) error {
	if _, _, ok := models.ParseFactor(history.Factor); !ok {
		return fmt.Errorf("invalid factor name '%s'", history.Factor)
	}
	if err := writeJSON(s.factorsDir, history.Factor, history); err != nil {
		return fmt.Errorf("failed to save factor history: %w", err)
	}
	s.logger.Debug().Str("factor", history.Factor).Int("points", len(history.Points)).Msg("Factor history saved")
	return nil
}

// ListFactors returns the stored factor names, sorted.
func (s *Store) ListFactors(_ context.Context) ([]string, error) {
	keys, err := listKeys(s.factorsDir)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// --- PortfolioStore ---

// GetSnapshot reads the named portfolio snapshot.
func (s *Store) GetSnapshot(_ context.Context, name string) (*models.PortfolioSnapshot, error) {
	var snap models.PortfolioSnapshot
	if err := readJSON(s.portfoliosDir, name, &snap); err != nil {
		return nil, fmt.Errorf("portfolio '%s': %w", name, err)
	}
	if snap.Name == "" {
		snap.Name = name
	}
	return &snap, nil
}

// SaveSnapshot writes a portfolio snapshot keyed by its name.
func (s *Store) SaveSnapshot(_ context.Context, snapshot *models.PortfolioSnapshot) error {
	if strings.TrimSpace(snapshot.Name) == "" {
		return fmt.Errorf("portfolio snapshot has no name")
	}
	if err := writeJSON(s.portfoliosDir, snapshot.Name, snapshot); err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	s.logger.Debug().Str("name", snapshot.Name).Int("positions", len(snapshot.Positions)).Msg("Portfolio saved")
	return nil
}

// ListSnapshots returns stored portfolio keys, sorted.
func (s *Store) ListSnapshots(_ context.Context) ([]string, error) {
	keys, err := listKeys(s.portfoliosDir)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// --- ReportStore ---

// SaveReport writes a report keyed by its ID.
func (s *Store) SaveReport(_ context.Context, report *models.RiskReport) error {
	if report.ID == "" {
		return fmt.Errorf("risk report has no id")
	}
	if err := writeJSON(s.reportsDir, report.ID, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	s.logger.Debug().Str("id", report.ID).Str("portfolio", report.Portfolio).Msg("Report saved")
	return nil
}

// GetReport reads a stored report.
func (s *Store) GetReport(_ context.Context, id string) (*models.RiskReport, error) {
	var r models.RiskReport
	if err := readJSON(s.reportsDir, id, &r); err != nil {
		return nil, fmt.Errorf("report '%s': %w", id, err)
	}
	return &r, nil
}

// --- helpers ---

// encodeKey maps a key to a filename reversibly, so distinct keys never share a
// file. Dots inside the key are kept (tickers like 7203.T); a leading dot is
// escaped so no key becomes hidden or collides with temp files.
func encodeKey(key string) string {
	enc := url.QueryEscape(key)
	if strings.HasPrefix(enc, ".") {
		enc = "%2E" + enc[1:]
	}
	return enc
}

func decodeKey(name string) (string, bool) {
	key, err := url.QueryUnescape(name)
	return key, err == nil
}

func filePath(dir, key string) string {
	return filepath.Join(dir, encodeKey(key)+".json")
}

// readJSON decodes a stored file. Missing files return an error wrapping os.ErrNotExist.
func readJSON(dir, key string, dest interface{}) error {
	path := filePath(dir, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("not found: %w", os.ErrNotExist)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeJSON writes atomically via a temp file and rename.
func writeJSON(dir, key string, data interface{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	target := filePath(dir, key)
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(jsonData); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func listKeys(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if key, ok := decodeKey(strings.TrimSuffix(name, ".json")); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
