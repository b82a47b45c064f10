package database

import (
	"database/sql"
	"sync"
)

// stmtCache prepares each distinct SQL text once per database handle and
// hands out shared *sql.Stmt values to callers, refcounted so that a plugin
// finishing its Setup/Finish pair can Release its statements without
// closing ones another plugin still holds (original_source's db_cache
// keeps one sqlite3_stmt per query, shared across the audio/image/video/
// playlist plugin modules that all run against the same connection).
type stmtCache struct {
	db *sql.DB
	mu sync.Mutex
	m  map[string]*cachedStmt
}

type cachedStmt struct {
	stmt *sql.Stmt
	refs int
}

func newStmtCache(db *sql.DB) *stmtCache {
	return &stmtCache{db: db, m: make(map[string]*cachedStmt)}
}

// Acquire returns the shared *sql.Stmt for query, preparing it on first use
// and incrementing its reference count.
func (c *stmtCache) Acquire(query string) (*sql.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cs, ok := c.m[query]; ok {
		cs.refs++
		return cs.stmt, nil
	}

	stmt, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	c.m[query] = &cachedStmt{stmt: stmt, refs: 1}
	return stmt, nil
}

// Release decrements query's reference count, closing the underlying
// statement once no caller holds it.
func (c *stmtCache) Release(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs, ok := c.m[query]
	if !ok {
		return
	}
	cs.refs--
	if cs.refs <= 0 {
		cs.stmt.Close()
		delete(c.m, query)
	}
}

func (c *stmtCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for q, cs := range c.m {
		cs.stmt.Close()
		delete(c.m, q)
	}
}
