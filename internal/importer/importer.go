// Package importer turns bank CSV exports into unmatched bank statement lines.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// ErrUnknownFormat is returned when no parser is registered for a format.
var ErrUnknownFormat = errors.New("unknown import format")

// Record is one parsed bank row. AmountCents is signed: positive is money in.
type Record struct {
	Date        time.Time
	Description string
	AmountCents int64
	Kind        string // bank-specific type column, informational
	Reference   string
}

// Parser converts a bank CSV file into records.
type Parser interface {
	Parse(r io.Reader) ([]Record, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&GenericParser{})
	return r
}

// ParseAmount converts a decimal string like "-4.00" or "1,250.10" to signed cents.
func ParseAmount(s string) (int64, error) {
	return ledger.ParseCents(strings.ReplaceAll(s, ",", ""))
}

var lineNamespace = uuid.MustParse("6f1c2a8e-4b7d-5e3f-9a10-2c4d6e8f0a1b")

// LineID derives a stable line id. occurrence separates identical rows in one file.
func LineID(tenantID string, rec Record, occurrence int) string {
	key := fmt.Sprintf("%s|%s|%s|%d|%d", tenantID, rec.Date.Format("2006-01-02"), rec.Description, rec.AmountCents, occurrence)
	return uuid.NewSHA1(lineNamespace, []byte(key)).String()
}

// Lines converts records into unmatched lines for tenantID. Zero-amount rows are dropped.
func Lines(tenantID string, recs []Record) []model.BankStatementLine {
	seen := make(map[string]int)
	var out []model.BankStatementLine
	for _, rec := range recs {
		if rec.AmountCents == 0 {
			continue
		}
		key := fmt.Sprintf("%s|%s|%d", rec.Date.Format("2006-01-02"), rec.Description, rec.AmountCents)
		n := seen[key]
		seen[key] = n + 1

		line := model.BankStatementLine{
			TenantID:    tenantID,
			ID:          LineID(tenantID, rec, n),
			Date:        rec.Date.UTC().Truncate(24 * time.Hour),
			Description: rec.Description,
			AmountCents: rec.AmountCents,
			Type:        model.LineCredit,
		}
		if rec.AmountCents < 0 {
			line.AmountCents = -rec.AmountCents
			line.Type = model.LineDebit
		}
		out = append(out, line)
	}
	return out
}

// Result summarizes one import.
type Result struct {
	Imported int                       `json:"imported"`
	Skipped  int                       `json:"skipped"`
	Lines    []model.BankStatementLine `json:"lines"`
}

// Service stores parsed lines for a tenant.
type Service struct {
	store    store.Store
	registry *Registry
	log      *slog.Logger
}

// NewService creates a Service. A nil registry uses DefaultRegistry; a nil logger discards.
func NewService(st store.Store, registry *Registry, log *slog.Logger) *Service {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{store: st, registry: registry, log: log}
}

// Import parses r with the named format and adds every line not already stored.
func (s *Service) Import(ctx context.Context, tenantID, format string, r io.Reader) (Result, error) {
	p := s.registry.Get(format)
	if p == nil {
		return Result{}, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	recs, err := p.Parse(r)
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s file: %w", p.Format(), err)
	}

	var res Result
	var fresh []model.BankStatementLine
	for _, line := range Lines(tenantID, recs) {
		_, err := s.store.GetBankLine(ctx, tenantID, line.ID)
		switch {
		case err == nil:
			res.Skipped++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return Result{}, err
		}
		fresh = append(fresh, line)
	}
	if len(fresh) > 0 {
		if err := s.store.AddBankLines(ctx, fresh); err != nil {
			return Result{}, fmt.Errorf("storing bank lines: %w", err)
		}
	}
	res.Imported = len(fresh)
	res.Lines = fresh
	s.log.Info("bank lines imported", "tenant", tenantID, "format", p.Format(), "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

// ImportDir imports every CSV under <root>/import and moves each file to import/processed.
func (s *Service) ImportDir(ctx context.Context, tenantID, format, root string) (Result, error) {
	files, err := Scan(root)
	if err != nil {
		return Result{}, err
	}
	var total Result
	for _, f := range files {
		res, err := s.importFile(ctx, tenantID, format, f.Path)
		if err != nil {
			return total, fmt.Errorf("%s: %w", f.Name, err)
		}
		total.Imported += res.Imported
		total.Skipped += res.Skipped
		total.Lines = append(total.Lines, res.Lines...)
		if err := MarkProcessed(root, f.Name); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Service) importFile(ctx context.Context, tenantID, format, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return s.Import(ctx, tenantID, format, f)
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <repoRoot>/import/.
func Scan(repoRoot string) ([]FileInfo, error) {
	dir := filepath.Join(repoRoot, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(repoRoot, fileName string) error {
	src := filepath.Join(repoRoot, importDir, fileName)
	dstDir := filepath.Join(repoRoot, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
