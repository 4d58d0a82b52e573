// Package catalog is the registry of tables: name and id lookups, primary
// keys and the backing files. It also loads the textual schema format used
// by the loader utilities.
package catalog

import (
	"fmt"
	"sync"

	"shale/storage"
	"shale/tuple"
)

// TableInfo binds a backing file to its name and declared primary key.
type TableInfo struct {
	File       storage.DbFile
	Name       string
	PrimaryKey string
}

// Catalog keeps the forward (name to id) and inverse (id to entry) mappings
// in step. It is initialized during load and read-mostly afterwards.
type Catalog struct {
	mu     sync.RWMutex
	tables map[int]*TableInfo
	names  map[string]int
}

var _ storage.FileResolver = (*Catalog)(nil)

func New() *Catalog {
	return &Catalog{
		tables: make(map[int]*TableInfo),
		names:  make(map[string]int),
	}
}

// AddTable registers a table under the given name. Re-adding a name or an id
// replaces the older binding, the newest add wins.
func (c *Catalog) AddTable(f storage.DbFile, name string, primaryKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if oldID, ok := c.names[name]; ok {
		delete(c.tables, oldID)
	}
	if old, ok := c.tables[f.ID()]; ok {
		delete(c.names, old.Name)
	}

	c.tables[f.ID()] = &TableInfo{File: f, Name: name, PrimaryKey: primaryKey}
	c.names[name] = f.ID()
}

func (c *Catalog) TableID(name string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.names[name]
	if !ok {
		return 0, fmt.Errorf("no table named %q", name)
	}
	return id, nil
}

// File resolves a table id to its backing file; the buffer pool consumes
// this on cache misses.
func (c *Catalog) File(tableID int) (storage.DbFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("no table with id %d", tableID)
	}
	return info.File, nil
}

func (c *Catalog) TupleDesc(tableID int) (*tuple.TupleDesc, error) {
	f, err := c.File(tableID)
	if err != nil {
		return nil, err
	}
	return f.TupleDesc(), nil
}

func (c *Catalog) TableName(tableID int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.tables[tableID]
	if !ok {
		return "", fmt.Errorf("no table with id %d", tableID)
	}
	return info.Name, nil
}

func (c *Catalog) PrimaryKey(tableID int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.tables[tableID]
	if !ok {
		return "", fmt.Errorf("no table with id %d", tableID)
	}
	return info.PrimaryKey, nil
}

// TableIDs snapshots the registered table ids.
func (c *Catalog) TableIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	return ids
}

func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[int]*TableInfo)
	c.names = make(map[string]int)
}
