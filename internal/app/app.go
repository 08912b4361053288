// Package app builds the ledger services from a Config and bootstraps the
// configured tenants.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/advisor"
	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/export"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/reconcile"
	"github.com/cleared-dev/ledger/internal/reserve"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/store/memstore"
	"github.com/cleared-dev/ledger/internal/store/sqlstore"
	"github.com/cleared-dev/ledger/internal/watchdog"
)

// App holds every service of a running ledger.
type App struct {
	Config *config.Config
	Dir    string
	Log    *slog.Logger

	Store     store.Store
	Accounts  *accounts.Service
	Ledger    *ledger.Ledger
	Reconcile *reconcile.Service
	Reserve   *reserve.Engine
	Watchdog  *watchdog.Service
	Importer  *importer.Service
	Exporter  *export.Exporter
	Keywords  *advisor.Keyword
	Audit     *auditlog.Recorder

	redis *redis.Client
}

// New opens the configured store and wires the services. Relative paths in
// cfg resolve against dir. A nil logger discards output.
func New(ctx context.Context, cfg *config.Config, dir string, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	st, err := openStore(ctx, cfg.Database, dir)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Dir: dir, Log: log, Store: st}
	a.Accounts = accounts.NewService(st, log.With("component", "accounts"))
	a.Ledger = ledger.New(st, ledger.WithLogger(log.With("component", "ledger")))
	// The audit hook goes first so a posting is logged before the reserve
	// allocations it triggers.
	if cfg.Audit.Enabled {
		a.Audit = auditlog.NewRecorder(resolve(dir, cfg.Audit.Dir), log.With("component", "audit"))
		a.Ledger.Subscribe(a.Audit.Hook())
	}
	a.Reserve = reserve.NewEngine(st, a.Ledger, log.With("component", "reserve"))
	a.Ledger.Subscribe(a.Reserve.Hook())

	a.Keywords = advisor.NewKeyword()
	if cfg.Advisor.MinScore > 0 {
		a.Keywords.MinScore = cfg.Advisor.MinScore
	}
	var suggester advisor.Suggester = a.Keywords
	if cfg.Redis.Enabled {
		if rdb := connectRedis(ctx, cfg.Redis, log); rdb != nil {
			a.redis = rdb
			suggester = advisor.NewCached(suggester, rdb, cfg.Redis.TTL, log.With("component", "advisor"))
		}
	}
	if cfg.Advisor.Timeout > 0 {
		suggester = advisor.WithTimeout(suggester, cfg.Advisor.Timeout)
	}

	a.Reconcile = reconcile.NewService(st, a.Ledger, suggester, log.With("component", "reconcile"))
	a.Watchdog = watchdog.NewService(st, watchdog.Options{
		LargeOutflowThresholdCents: cfg.Watchdog.LargeOutflowThresholdCents,
		FuzzyDuplicates:            cfg.Watchdog.FuzzyDuplicates,
		FuzzyRatio:                 cfg.Watchdog.FuzzyRatio,
		WindowDays:                 cfg.Watchdog.WindowDays,
	}, log.With("component", "watchdog"))
	a.Importer = importer.NewService(st, nil, log.With("component", "importer"))
	a.Exporter = export.New(a.Accounts, a.Ledger, export.Options{
		AutoCommit: cfg.Git.AutoCommit,
		Author:     gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail},
	}, log.With("component", "export"))
	return a, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func openStore(ctx context.Context, db config.DatabaseConfig, dir string) (store.Store, error) {
	switch db.Driver {
	case "memory", "":
		return memstore.New(), nil
	case string(sqlstore.DialectSQLite):
		dsn := db.DSN
		if !strings.HasPrefix(dsn, "file:") {
			dsn = resolve(dir, dsn)
		}
		return sqlstore.Open(ctx, sqlstore.Options{Driver: sqlstore.DialectSQLite, DSN: dsn, Migrate: db.Migrate})
	case string(sqlstore.DialectPostgres):
		return sqlstore.Open(ctx, sqlstore.Options{Driver: sqlstore.DialectPostgres, DSN: db.DSN, Migrate: db.Migrate})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// connectRedis returns nil when the server is unreachable; suggestions then go uncached.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, continuing without suggestion cache", "addr", cfg.Addr, "error", err)
		rdb.Close()
		return nil
	}
	return rdb
}

// Close releases the store and the redis connection.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}

// Bootstrap applies every configured tenant. It is safe to run on every start.
func (a *App) Bootstrap(ctx context.Context) error {
	for _, tc := range a.Config.Tenants {
		if err := a.BootstrapTenant(ctx, tc); err != nil {
			return fmt.Errorf("tenant %s: %w", tc.ID, err)
		}
	}
	return nil
}

// BootstrapTenant seeds the default chart, records the operating account,
// loads suggestion rules and registers reserve rules for one tenant.
func (a *App) BootstrapTenant(ctx context.Context, tc config.TenantConfig) error {
	if _, err := a.Accounts.SeedDefaultChart(ctx, tc.ID, tc.EntityType, tc.Currency); err != nil {
		return err
	}

	t := model.Tenant{
		ID:                         tc.ID,
		Name:                       tc.Name,
		Currency:                   tc.Currency,
		LargeOutflowThresholdCents: tc.LargeOutflowThresholdCents,
	}
	if tc.BankFeed.AccountCode != "" {
		acct, err := a.Accounts.Resolve(ctx, tc.ID, tc.BankFeed.AccountCode)
		if err != nil {
			return fmt.Errorf("bank feed account: %w", err)
		}
		t.OperatingAccountID = acct.ID
	}
	if err := a.Store.PutTenant(ctx, t); err != nil {
		return err
	}

	for _, rc := range tc.ReserveRules {
		if err := a.registerReserveRule(ctx, tc.ID, rc); err != nil {
			return err
		}
	}
	return a.RefreshSuggestRules(ctx, tc.ID)
}

// ReserveRuleID is stable per tenant and rule name so restarts update rules in place.
func ReserveRuleID(tenantID, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("reserve-rule|"+tenantID+"|"+name)).String()
}

func (a *App) registerReserveRule(ctx context.Context, tenantID string, rc config.ReserveRuleConfig) error {
	pct, err := decimal.NewFromString(rc.Percentage)
	if err != nil {
		return fmt.Errorf("reserve rule %s: percentage: %w", rc.Name, err)
	}
	source, err := a.Accounts.Resolve(ctx, tenantID, rc.SourceCode)
	if err != nil {
		return fmt.Errorf("reserve rule %s: source: %w", rc.Name, err)
	}
	target, err := a.Accounts.Resolve(ctx, tenantID, rc.ReserveCode)
	if err != nil {
		return fmt.Errorf("reserve rule %s: reserve: %w", rc.Name, err)
	}
	_, err = a.Reserve.Register(ctx, model.ReserveRule{
		TenantID:         tenantID,
		ID:               ReserveRuleID(tenantID, rc.Name),
		Name:             rc.Name,
		TargetPercentage: pct,
		SourceAccountID:  source.ID,
		ReserveAccountID: target.ID,
		IsAutomated:      rc.Automated,
	})
	return err
}

// RefreshSuggestRules reloads the keyword rules of a tenant: configured
// keywords first, then one rule per account name.
func (a *App) RefreshSuggestRules(ctx context.Context, tenantID string) error {
	var rules []advisor.Rule
	if tc := a.Config.Tenant(tenantID); tc != nil {
		for _, sr := range tc.SuggestRules {
			acct, err := a.Accounts.Resolve(ctx, tenantID, sr.AccountCode)
			if err != nil {
				return fmt.Errorf("suggest rule %q: %w", sr.Keyword, err)
			}
			rules = append(rules, advisor.Rule{Keyword: sr.Keyword, AccountID: acct.ID})
		}
	}
	accts, err := a.Accounts.List(ctx, tenantID)
	if err != nil {
		return err
	}
	rules = append(rules, advisor.RulesFromAccounts(accts)...)
	a.Keywords.SetRules(tenantID, rules)
	return nil
}
