package schema

import "fmt"

// Catalog is an ordered set of tables, the unit the schema layer compiles.
type Catalog struct {
	tables []*Table
	byName map[string]*Table
}

// NewCatalog builds a catalog. Table names must be unique.
func NewCatalog(tables ...*Table) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if err := c.Add(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends a table.
func (c *Catalog) Add(t *Table) error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}
	if _, dup := c.byName[t.Name()]; dup {
		return fmt.Errorf("duplicate table %q", t.Name())
	}
	c.tables = append(c.tables, t)
	c.byName[t.Name()] = t
	return nil
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Tables returns the tables in declaration order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, len(c.tables))
	copy(out, c.tables)
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	return len(c.tables)
}
