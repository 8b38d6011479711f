package database

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"sitekernel/pkg/catalog"
	"sitekernel/pkg/config"
	"sitekernel/pkg/dberror"
	"sitekernel/pkg/engine"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/params"
	"sitekernel/pkg/types"
	"sitekernel/pkg/wire"
)

// Database is an interactive front end over one partition engine. It plays
// the coordinator's part for single-statement transactions: every
// ExecuteQuery arms a fresh undo token, commits it on success and rolls it
// back on failure. Safe for concurrent use.
type Database struct {
	engine *engine.Engine
	name   string

	mutex     sync.Mutex
	nextToken int64
	nextTxn   int64
	stats     *DatabaseStats
}

// DatabaseStats tracks performance metrics
type DatabaseStats struct {
	QueriesExecuted   int64
	TransactionsCount int64
	ErrorCount        int64
	RolledBack        int64
	mutex             sync.RWMutex
}

// QueryResult represents the result of a query execution
type QueryResult struct {
	Success      bool
	Columns      []string
	Rows         [][]string
	RowsAffected int
	Message      string
	Error        error
	FragmentID   int64
	CacheHit     bool
}

// DatabaseInfo contains database metadata
type DatabaseInfo struct {
	Name              string
	Tables            []string
	TableCount        int
	QueriesExecuted   int64
	TransactionsCount int64
	ErrorCount        int64
	RolledBack        int64
	CachedFragments   int
	Engine            map[string]float64
}

// NewDatabase wraps a new engine for partition 0.
func NewDatabase(name string, cfg config.EngineConfig, opts ...engine.Option) *Database {
	return &Database{
		engine:    engine.New(cfg, 0, opts...),
		name:      name,
		nextToken: 1,
		nextTxn:   1,
		stats:     &DatabaseStats{},
	}
}

// Engine exposes the underlying engine.
func (db *Database) Engine() *engine.Engine { return db.engine }

// LoadCatalog applies a JSON catalog diff.
func (db *Database) LoadCatalog(data []byte) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.engine.LoadCatalog(data)
}

// LoadCatalogFile applies the catalog diff stored at path.
func (db *Database) LoadCatalogFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %v", path, err)
	}
	return db.LoadCatalog(data)
}

// ExecuteQuery loads the plan fragment in query and runs it as its own
// transaction. "SHOW TABLES" lists the resident tables instead.
func (db *Database) ExecuteQuery(query string, args ...types.Value) (QueryResult, error) {
	if strings.EqualFold(strings.TrimSpace(query), "SHOW TABLES") {
		return db.showTables(), nil
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	txn := db.nextTxn
	db.nextTxn++
	log := logging.WithTxn(txn).With("database", db.name)

	id, hit, _, err := db.engine.LoadFragment([]byte(query))
	if err != nil {
		db.recordError()
		return QueryResult{}, fmt.Errorf("plan error: %w", err)
	}

	token := db.nextToken
	db.nextToken++
	if err := db.engine.SetUndoToken(token); err != nil {
		db.recordError()
		db.recover(err)
		return QueryResult{}, err
	}
	defer db.recordTransaction()

	inv := engine.NewInvocation(id, txn, params.Append(nil, args...))
	inv.LastCommittedTxnID = txn - 1
	if st := db.engine.ExecuteQuery(inv); st != engine.StatusSuccess {
		db.recordError()
		execErr := db.exception()
		if dberror.IsFatal(execErr) || db.engine.Faulted() != nil {
			db.recover(execErr)
			return QueryResult{}, fmt.Errorf("execution error: %w", execErr)
		}
		if err := db.engine.UndoUndoToken(token); err != nil {
			db.recover(err)
		}
		db.recordRollback()
		log.Debug("transaction rolled back", "fragment_id", id, "error", execErr)
		return QueryResult{}, fmt.Errorf("execution error: %w", execErr)
	}

	results, err := wire.ReadResults(db.engine.ResultBytes())
	if err != nil || len(results) == 0 {
		db.recordError()
		return QueryResult{}, fmt.Errorf("malformed result: %v", err)
	}
	if err := db.engine.ReleaseUndoToken(token); err != nil {
		return QueryResult{}, err
	}

	result := formatResult(results[0].Table)
	result.FragmentID = id
	result.CacheHit = hit
	db.recordSuccess()
	return result, nil
}

func (db *Database) exception() error {
	ex, err := wire.ReadException(db.engine.ExceptionBytes())
	if err != nil {
		return err
	}
	if ex == nil {
		return fmt.Errorf("fragment failed without an exception")
	}
	return ex
}

// recover resets a faulted engine so the session stays usable.
func (db *Database) recover(cause error) {
	if db.engine.Faulted() == nil {
		return
	}
	logging.WithError(cause).Warn("resetting faulted engine", "database", db.name)
	db.engine.Reset()
	db.nextToken = 1
}

func (db *Database) showTables() QueryResult {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	rows := [][]string{}
	for _, name := range db.engine.Catalog().TableNames() {
		t, err := db.engine.Catalog().TableByName(name)
		if err != nil {
			continue
		}
		rows = append(rows, []string{name, fmt.Sprintf("%d", t.ID()), t.Schema().String(), fmt.Sprintf("%d", t.RowCount())})
	}
	return QueryResult{
		Success: true,
		Columns: []string{"Table", "ID", "Columns", "Rows"},
		Rows:    rows,
		Message: fmt.Sprintf("%d table(s)", len(rows)),
	}
}

// recordError updates error statistics
func (db *Database) recordError() {
	db.stats.mutex.Lock()
	db.stats.ErrorCount++
	db.stats.mutex.Unlock()
}

// recordSuccess updates success statistics
func (db *Database) recordSuccess() {
	db.stats.mutex.Lock()
	db.stats.QueriesExecuted++
	db.stats.mutex.Unlock()
}

func (db *Database) recordRollback() {
	db.stats.mutex.Lock()
	db.stats.RolledBack++
	db.stats.mutex.Unlock()
}

func (db *Database) recordTransaction() {
	db.stats.mutex.Lock()
	db.stats.TransactionsCount++
	db.stats.mutex.Unlock()
}

// GetTables returns a list of all tables in the database
func (db *Database) GetTables() []string {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.engine.Catalog().TableNames()
}

// GetStatistics returns current database statistics
func (db *Database) GetStatistics() DatabaseInfo {
	tables := db.GetTables()

	db.mutex.Lock()
	engineStats := db.engine.Stats()
	cached := db.engine.CacheLen()
	db.mutex.Unlock()

	db.stats.mutex.RLock()
	defer db.stats.mutex.RUnlock()
	return DatabaseInfo{
		Name:              db.name,
		Tables:            tables,
		TableCount:        len(tables),
		QueriesExecuted:   db.stats.QueriesExecuted,
		TransactionsCount: db.stats.TransactionsCount,
		ErrorCount:        db.stats.ErrorCount,
		RolledBack:        db.stats.RolledBack,
		CachedFragments:   cached,
		Engine:            engineStats,
	}
}

// UpdateCatalog applies a diff between transactions.
func (db *Database) UpdateCatalog(d catalog.Diff) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	txn := db.nextTxn
	db.nextTxn++
	return db.engine.UpdateCatalog(txn, d)
}

// Close quiesces the engine's hooks.
func (db *Database) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.engine.Quiesce(db.nextTxn - 1)
}
