package advisor

import (
	"context"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/tenant"
)

// DefaultMinScore is the similarity a fuzzy keyword match needs to count.
const DefaultMinScore = 0.8

// Rule maps a keyword found in bank descriptions to an account.
type Rule struct {
	Keyword   string
	AccountID string
}

// RulesFromAccounts derives one rule per account from its name.
func RulesFromAccounts(accts []model.Account) []Rule {
	rules := make([]Rule, 0, len(accts))
	for _, a := range accts {
		if a.Name == "" {
			continue
		}
		rules = append(rules, Rule{Keyword: a.Name, AccountID: a.ID})
	}
	return rules
}

// Keyword suggests accounts by keyword containment, falling back to a
// normalized Levenshtein similarity between the keyword and each word.
type Keyword struct {
	MinScore float64

	mu    sync.RWMutex
	rules map[string][]Rule
}

// NewKeyword creates a Keyword suggester with DefaultMinScore.
func NewKeyword() *Keyword {
	return &Keyword{MinScore: DefaultMinScore, rules: make(map[string][]Rule)}
}

// SetRules replaces the tenant's rules. Earlier rules win ties.
func (k *Keyword) SetRules(tenantID string, rules []Rule) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rules[tenantID] = append([]Rule(nil), rules...)
}

func (k *Keyword) Suggest(ctx context.Context, description string) (string, bool) {
	k.mu.RLock()
	rules := k.rules[tenant.IDFrom(ctx)]
	k.mu.RUnlock()

	desc := normalize(description)
	if desc == "" {
		return "", false
	}
	words := strings.Fields(desc)

	best, bestScore := "", 0.0
	for _, r := range rules {
		s := score(desc, words, normalize(r.Keyword))
		if s > bestScore {
			best, bestScore = r.AccountID, s
		}
	}
	if best == "" || bestScore < k.MinScore {
		return "", false
	}
	return best, true
}

func score(desc string, words []string, keyword string) float64 {
	if keyword == "" {
		return 0
	}
	if strings.Contains(desc, keyword) {
		return 1
	}
	// Multi-word keywords are compared against the whole description.
	candidates := words
	if strings.Contains(keyword, " ") {
		candidates = []string{desc}
	}
	best := 0.0
	for _, w := range candidates {
		if s := similarity(w, keyword); s > best {
			best = s
		}
	}
	return best
}

func similarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

func normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.Map(func(r rune) rune {
		if r == '*' || r == '#' || r == '/' || r == '-' || r == '_' || r == '.' || r == ',' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
