package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/surdb/surdb-engine/cache"
	"github.com/surdb/surdb-engine/common"
	"github.com/surdb/surdb-engine/document"
	"github.com/surdb/surdb-engine/exec"
	"github.com/surdb/surdb-engine/fulltext"
	"github.com/surdb/surdb-engine/iterator"
	"github.com/surdb/surdb-engine/kv"
	"github.com/surdb/surdb-engine/kv/boltkv"
	"github.com/surdb/surdb-engine/livequery"
	"github.com/surdb/surdb-engine/stmt"
)

// DefaultDataDir returns the SURDB_DATA_DIR environment variable's value,
// or "./surdb.db" if unset — the process-wide default WithDataDir falls
// back to when called with an empty path.
func DefaultDataDir() string {
	return common.GetEnv("SURDB_DATA_DIR", "./surdb.db")
}

// DefaultFTCompactInterval returns SURDB_FT_COMPACT_INTERVAL_SECONDS as a
// Duration, defaulting to 30s — the period New uses to run the full-text
// compactor (§4.7 Compaction) when no WithFTCompactInterval option is
// given. A non-positive value disables the compactor entirely.
func DefaultFTCompactInterval() time.Duration {
	secs := common.GetEnvInt("SURDB_FT_COMPACT_INTERVAL_SECONDS", 30)
	return time.Duration(secs) * time.Second
}

// defaultLogFormat selects JSON output when SURDB_LOG_JSON is truthy,
// matching common.LoggerConfig.Format's "json"/"text" values.
func defaultLogFormat() string {
	if common.GetEnvBool("SURDB_LOG_JSON", false) {
		return "json"
	}
	return "text"
}

// Engine is the top-level, runnable query engine: a kv.Store, the schema
// Catalog, live-query fan-out, and the exec.Executor wired together
// through this package's RecordStore/Hooks/Runner implementations.
//
// Grounded in db/bolt.DB's single-struct-owns-the-backend shape (teacher),
// generalized from a bare KV handle to the full set of collaborators one
// running query engine needs.
type Engine struct {
	Store    kv.Store
	Catalog  *Catalog
	Cache    *cache.Cache
	Live     *livequery.Registry
	Notify   *livequery.Bus
	Executor *exec.Executor
	Log      *logrus.Entry

	closeStore  func() error
	compactStop chan struct{}
}

// Option configures an Engine at construction time (functional-options,
// matching the teacher's *Config-struct-plus-defaults construction style
// generalized to composable options since an Engine has more optional
// collaborators than a single config struct reads well).
type Option func(*config)

type config struct {
	store           kv.Store
	closeFn         func() error
	cache           *cache.Cache
	catalog         *Catalog
	live            *livequery.Registry
	relay           livequery.Relay
	log             *logrus.Entry
	fanout          int
	compactInterval *time.Duration
	err             error
}

// WithDataDir opens an embedded bbolt-backed kv.Store at path, falling
// back to DefaultDataDir (SURDB_DATA_DIR) when path is empty.
func WithDataDir(path string) Option {
	if path == "" {
		path = DefaultDataDir()
	}
	return WithBoltStore(path)
}

// WithFTCompactInterval overrides how often the full-text compactor runs
// (§4.7 Compaction). A non-positive d disables the compactor. Defaults to
// DefaultFTCompactInterval when not given.
func WithFTCompactInterval(d time.Duration) Option {
	return func(c *config) { c.compactInterval = common.Ptr(d) }
}

// WithBoltStore opens an embedded bbolt-backed kv.Store at path (§4.10).
func WithBoltStore(path string) Option {
	return func(c *config) {
		if c.err != nil {
			return
		}
		db, err := boltkv.Open(path)
		if err != nil {
			c.err = err
			return
		}
		c.store = db
		c.closeFn = db.Close
	}
}

// WithStore injects an already-open kv.Store, e.g. an in-memory test
// double. The caller remains responsible for closing it.
func WithStore(store kv.Store) Option {
	return func(c *config) { c.store = store }
}

// WithCache injects a pre-built cache.Cache instead of a fresh cache.New().
func WithCache(ch *cache.Cache) Option {
	return func(c *config) { c.cache = ch }
}

// WithCatalog injects a pre-populated Catalog instead of an empty one.
func WithCatalog(cat *Catalog) Option {
	return func(c *config) { c.catalog = cat }
}

// WithLiveQueryRegistry injects a pre-built live-query Registry.
func WithLiveQueryRegistry(r *livequery.Registry) Option {
	return func(c *config) { c.live = r }
}

// WithRedisRelay connects a RedisRelay for cluster-wide live-query
// fan-out (§4.9). Omit this option for a single-node deployment.
func WithRedisRelay(ctx context.Context, cfg livequery.RedisConfig) Option {
	return func(c *config) {
		if c.err != nil {
			return
		}
		relay, err := livequery.NewRedisRelay(ctx, cfg)
		if err != nil {
			c.err = err
			return
		}
		c.relay = relay
	}
}

// WithLogger overrides the ambient *logrus.Entry every subsystem logs
// through. Defaults to a plain entry over common.Logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *config) { c.log = log }
}

// WithLoggerConfig builds the ambient *logrus.Entry from a
// common.LoggerConfig (e.g. JSON output, a non-default level) instead of
// the bare common.Logger default.
func WithLoggerConfig(cfg common.LoggerConfig) Option {
	return func(c *config) { c.log = logrus.NewEntry(common.NewLogger(cfg)) }
}

// WithFanout overrides the PARALLEL worker-pool size (§4.4). Defaults to
// iterator.DefaultFanout.
func WithFanout(n int) Option {
	return func(c *config) { c.fanout = n }
}

// New constructs an Engine from opts. At least one of WithBoltStore/
// WithStore must supply a kv.Store.
func New(opts ...Option) (*Engine, error) {
	cfg := &config{fanout: iterator.DefaultFanout}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	if cfg.store == nil {
		return nil, errors.New("engine: no store configured, use WithBoltStore or WithStore")
	}
	if cfg.cache == nil {
		cfg.cache = cache.New()
	}
	if cfg.catalog == nil {
		cfg.catalog = NewCatalog()
	}
	if cfg.live == nil {
		cfg.live = livequery.NewRegistry()
	}
	if cfg.log == nil {
		cfg.log = logrus.NewEntry(common.NewLogger(common.LoggerConfig{
			Level:      common.LogLevelInfo,
			Format:     defaultLogFormat(),
			TimeFormat: time.RFC3339,
		}))
	}

	notify := livequery.NewBus(cfg.log, cfg.relay)
	runner := &Runner{
		Catalog: cfg.catalog,
		Cache:   cfg.cache,
		Live:    cfg.live,
		Notify:  notify,
		Fanout:  cfg.fanout,
		CLog:    common.ServiceLogger("surdb-engine"),
	}
	executor := exec.NewExecutor(cfg.store, runner, cfg.log)

	e := &Engine{
		Store:      cfg.store,
		Catalog:    cfg.catalog,
		Cache:      cfg.cache,
		Live:       cfg.live,
		Notify:     notify,
		Executor:   executor,
		Log:        cfg.log,
		closeStore: cfg.closeFn,
	}

	interval := DefaultFTCompactInterval()
	if cfg.compactInterval != nil {
		interval = *cfg.compactInterval
	}
	if interval > 0 {
		e.compactStop = make(chan struct{})
		go e.runCompactor(interval)
	}

	return e, nil
}

// runCompactor periodically folds every declared table's full-text
// indexes' append logs into their compacted roots (§4.7 Compaction),
// until Close stops it. A table without FTIndexes costs one empty
// Catalog.All() scan per tick and nothing else.
func (e *Engine) runCompactor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	cl := common.ServiceLogger("surdb-engine").WithField("operation", "fulltext.compactor")
	for {
		select {
		case <-e.compactStop:
			return
		case <-ticker.C:
			if err := e.compactFullTextIndexes(context.Background()); err != nil {
				cl.WithError(err).Error("compaction pass failed")
			}
		}
	}
}

// compactFullTextIndexes runs one Compaction pass over every FTIndexes
// entry of every declared table, each under its own write transaction so
// one table's failure does not block another's.
func (e *Engine) compactFullTextIndexes(ctx context.Context) error {
	for _, table := range e.Catalog.All() {
		for _, def := range table.FTIndexes {
			if err := e.compactOne(ctx, table, def); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) compactOne(ctx context.Context, table document.TableDef, def document.FTIndexDef) error {
	tx, err := e.Store.Begin(ctx, kv.ModeWrite, kv.LockOptimistic)
	if err != nil {
		return err
	}
	idx := fulltext.Index{
		NS: table.NS, DB: table.DB, TB: table.TB, Name: def.Name,
		Node:       ftNode,
		Analyzer:   def.Analyzer,
		Highlights: def.Highlights,
		BM25:       def.BM25,
	}
	if _, err := idx.Compaction(ctx, tx); err != nil {
		tx.Cancel(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Close releases the underlying storage engine and the live-query bus.
// Safe to call even when the store was injected via WithStore (closeStore
// is nil in that case, and this only closes resources Engine itself
// owns).
func (e *Engine) Close() error {
	if e.compactStop != nil {
		close(e.compactStop)
	}
	e.Notify.Close()
	if e.closeStore != nil {
		return e.closeStore()
	}
	return nil
}

// Query runs q's statements under opts and returns one exec.Response per
// statement (§4.8). opts.NS/DB seed the session; a USE statement inside q
// may change them for subsequent statements in the same call.
func (e *Engine) Query(ctx context.Context, q *stmt.Query, opts exec.Options) []exec.Response {
	return e.Executor.Execute(ctx, q, opts)
}

// DefineTable registers tb's schema in the Catalog (§4.1/§4.5.2). Schema
// management (DEFINE TABLE/FIELD) is not modeled on stmt.Statement in
// this build — see DESIGN.md — so callers populate the Catalog directly
// through this method instead of issuing a parsed DEFINE statement.
func (e *Engine) DefineTable(ns, db string, def document.TableDef) {
	e.Catalog.Define(ns, db, def)
}
