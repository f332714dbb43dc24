package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/applicant"
	"github.com/trezcool/admissions/core/jurisdiction"
	"github.com/trezcool/admissions/core/shortlist"
)

var errNoSQL = errors.New("dummy transaction does not run SQL")

type (
	// DB is an in-memory store for tests and local runs.
	// Transactions are serialized and roll back by restoring a snapshot of every table.
	DB struct {
		sync.RWMutex
		txMu sync.Mutex
		data tables
	}

	tables struct {
		nodes      map[string]jurisdiction.Node
		applicants map[int64]applicant.Applicant
		secondary  map[int64]applicant.SecondaryInfo
		criteria   map[int]shortlist.Criteria
		batches    map[int64]shortlist.Batch
		selections map[int64][]int64 // batch ID -> applicant IDs
		lastAppID  int64
		lastBatch  int64
	}
)

var _ core.TxBeginner = (*DB)(nil)

// defaultCriteria mirrors the rows seeded by the migrations.
var defaultCriteria = []shortlist.Criteria{
	{ID: 1, Label: "Top 4%", ThresholdPct: 4},
	{ID: 2, Label: "Top 6%", ThresholdPct: 6},
	{ID: 3, Label: "Top 8%", ThresholdPct: 8},
}

func Open() (*DB, error) {
	db := &DB{data: tables{
		nodes:      make(map[string]jurisdiction.Node),
		applicants: make(map[int64]applicant.Applicant),
		secondary:  make(map[int64]applicant.SecondaryInfo),
		criteria:   make(map[int]shortlist.Criteria),
		batches:    make(map[int64]shortlist.Batch),
		selections: make(map[int64][]int64),
	}}
	for _, c := range defaultCriteria {
		db.data.criteria[c.ID] = c
	}
	return db, nil
}

// AddCriteria stores a criteria row, e.g. one with an unsupported threshold.
func (db *DB) AddCriteria(c shortlist.Criteria) {
	db.Lock()
	defer db.Unlock()
	db.data.criteria[c.ID] = c
}

func (t tables) clone() tables {
	c := t
	c.nodes = make(map[string]jurisdiction.Node, len(t.nodes))
	for k, v := range t.nodes {
		c.nodes[k] = v
	}
	c.applicants = make(map[int64]applicant.Applicant, len(t.applicants))
	for k, v := range t.applicants {
		c.applicants[k] = v
	}
	c.secondary = make(map[int64]applicant.SecondaryInfo, len(t.secondary))
	for k, v := range t.secondary {
		c.secondary[k] = v
	}
	c.criteria = make(map[int]shortlist.Criteria, len(t.criteria))
	for k, v := range t.criteria {
		c.criteria[k] = v
	}
	c.batches = make(map[int64]shortlist.Batch, len(t.batches))
	for k, v := range t.batches {
		v.BlockCodes = append([]string(nil), v.BlockCodes...)
		c.batches[k] = v
	}
	c.selections = make(map[int64][]int64, len(t.selections))
	for k, v := range t.selections {
		c.selections[k] = append([]int64(nil), v...)
	}
	return c
}

func (db *DB) Begin(_ context.Context) (core.DBTransactor, error) {
	db.txMu.Lock()
	db.RLock()
	snapshot := db.data.clone()
	db.RUnlock()
	return &tx{db: db, snapshot: snapshot}, nil
}

type tx struct {
	db       *DB
	snapshot tables
	done     bool
}

var _ core.DBTransactor = (*tx)(nil)

func (t *tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.db.Lock()
	t.db.data = t.snapshot
	t.db.Unlock()
	t.db.txMu.Unlock()
	return nil
}

func (t *tx) Exec(string, ...interface{}) (sql.Result, error) { return nil, errNoSQL }

func (t *tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (t *tx) Query(string, ...interface{}) (*sql.Rows, error) { return nil, errNoSQL }

func (t *tx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (t *tx) QueryRow(string, ...interface{}) *sql.Row { return nil }

func (t *tx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }
