// Package watchdog scans bank lines for anomalies. Scanning never mutates state,
// and scanning the same lines twice yields the same findings.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

const (
	// DefaultFuzzyRatio is the normalized edit distance below which two descriptions count as near-identical.
	DefaultFuzzyRatio = 0.3
	// DefaultWindowDays bounds how far apart near-duplicate lines may be dated.
	DefaultWindowDays = 3
)

// Options tunes a scan. A zero LargeOutflowThresholdCents disables large-outflow detection.
type Options struct {
	LargeOutflowThresholdCents int64
	FuzzyDuplicates            bool
	FuzzyRatio                 float64
	WindowDays                 int
}

type dupKey struct {
	description string
	amount      int64
	typ         model.LineType
}

// Scan returns the findings for lines, ordered by the line they concern
// (date, then ID) and then by kind.
func Scan(lines []model.BankStatementLine, opts Options) []model.Finding {
	if opts.FuzzyRatio <= 0 {
		opts.FuzzyRatio = DefaultFuzzyRatio
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultWindowDays
	}

	sorted := append([]model.BankStatementLine(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var findings []model.Finding
	first := make(map[dupKey]model.BankStatementLine)
	for i, l := range sorted {
		key := dupKey{l.Description, l.AmountCents, l.Type}
		if orig, seen := first[key]; seen {
			findings = append(findings, model.Finding{
				ID:            "duplicate:" + l.ID,
				Kind:          model.FindingDuplicate,
				Severity:      model.SeverityMedium,
				LineID:        l.ID,
				RelatedLineID: orig.ID,
				AmountCents:   l.AmountCents,
				Message: fmt.Sprintf("%s %q for %s repeats line %s from %s",
					l.Type, l.Description, money(l.AmountCents), orig.ID, orig.Date.Format(time.DateOnly)),
			})
		} else {
			first[key] = l
			if opts.FuzzyDuplicates {
				if rel, ok := nearDuplicate(sorted[:i], l, opts); ok {
					findings = append(findings, model.Finding{
						ID:            "possible_duplicate:" + l.ID,
						Kind:          model.FindingPossibleDuplicate,
						Severity:      model.SeverityLow,
						LineID:        l.ID,
						RelatedLineID: rel.ID,
						AmountCents:   l.AmountCents,
						Message: fmt.Sprintf("%s %q for %s looks like line %s %q from %s",
							l.Type, l.Description, money(l.AmountCents), rel.ID, rel.Description, rel.Date.Format(time.DateOnly)),
					})
				}
			}
		}

		if opts.LargeOutflowThresholdCents > 0 && l.Type == model.LineDebit && l.AmountCents > opts.LargeOutflowThresholdCents {
			findings = append(findings, model.Finding{
				ID:          "large_outflow:" + l.ID,
				Kind:        model.FindingLargeOutflow,
				Severity:    model.SeverityHigh,
				LineID:      l.ID,
				AmountCents: l.AmountCents,
				Message: fmt.Sprintf("outflow %q of %s exceeds threshold %s",
					l.Description, money(l.AmountCents), money(opts.LargeOutflowThresholdCents)),
			})
		}
	}
	return findings
}

// nearDuplicate finds the earliest prior line with the same amount and type, dated
// within the window, whose description differs by a small edit distance.
func nearDuplicate(prior []model.BankStatementLine, l model.BankStatementLine, opts Options) (model.BankStatementLine, bool) {
	window := time.Duration(opts.WindowDays) * 24 * time.Hour
	desc := strings.ToUpper(strings.TrimSpace(l.Description))
	for _, p := range prior {
		if p.AmountCents != l.AmountCents || p.Type != l.Type {
			continue
		}
		if l.Date.Sub(p.Date) > window {
			continue
		}
		other := strings.ToUpper(strings.TrimSpace(p.Description))
		maxLen := len(desc)
		if len(other) > maxLen {
			maxLen = len(other)
		}
		if maxLen == 0 {
			continue
		}
		if float64(levenshtein.ComputeDistance(desc, other))/float64(maxLen) < opts.FuzzyRatio {
			return p, true
		}
	}
	return model.BankStatementLine{}, false
}

func money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Service runs scans against stored lines.
type Service struct {
	store store.Store
	opts  Options
	log   *slog.Logger
}

// NewService creates a Service. opts.LargeOutflowThresholdCents is the fallback
// for tenants without their own threshold. A nil logger discards output.
func NewService(st store.Store, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{store: st, opts: opts, log: log}
}

// Run scans every bank line of the tenant, matched or not.
func (s *Service) Run(ctx context.Context, tenantID string) ([]model.Finding, error) {
	opts := s.opts
	t, err := s.store.GetTenant(ctx, tenantID)
	switch {
	case err == nil:
		if t.LargeOutflowThresholdCents > 0 {
			opts.LargeOutflowThresholdCents = t.LargeOutflowThresholdCents
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("loading tenant %s: %w", tenantID, err)
	}

	lines, err := s.store.ListBankLines(ctx, tenantID, store.LineFilter{})
	if err != nil {
		return nil, err
	}
	findings := Scan(lines, opts)
	s.log.Info("watchdog scan", "tenant", tenantID, "lines", len(lines), "findings", len(findings))
	return findings, nil
}
