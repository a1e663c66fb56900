// Package seed loads warehouse, bin and operator fixtures into a ledger.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"warehouse-ops/internal/core"
)

//go:embed default.yaml
var defaultFixture []byte

// Fixture is the administrative data the engine treats as read-only.
type Fixture struct {
	Warehouses []core.Warehouse `yaml:"warehouses"`
	Bins       []core.Bin       `yaml:"bins"`
	Operators  []core.Operator  `yaml:"operators"`
}

// Default returns the embedded reference layout.
func Default() *Fixture {
	f, err := Parse(defaultFixture)
	if err != nil {
		panic(fmt.Sprintf("embedded fixture: %v", err))
	}
	return f
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML fixture, rejecting unknown fields and invalid bins.
func Parse(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	for i := range f.Bins {
		if f.Bins[i].Status == "" {
			f.Bins[i].Status = core.BinAvailable
		}
		if err := f.Bins[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// Counts summarizes what Apply wrote.
type Counts struct {
	Warehouses int `json:"warehouses"`
	Bins       int `json:"bins"`
	Operators  int `json:"operators"`
}

// Apply upserts warehouses first so bins and operators can reference them.
func Apply(ctx context.Context, s core.Seeder, f *Fixture) (Counts, error) {
	var c Counts
	for _, w := range f.Warehouses {
		if err := s.UpsertWarehouse(ctx, w); err != nil {
			return c, fmt.Errorf("upsert warehouse %s: %w", w.ID, err)
		}
		c.Warehouses++
	}
	for _, b := range f.Bins {
		if err := s.UpsertBin(ctx, b); err != nil {
			return c, fmt.Errorf("upsert bin %s: %w", b.Code, err)
		}
		c.Bins++
	}
	for _, o := range f.Operators {
		if err := s.UpsertOperator(ctx, o); err != nil {
			return c, fmt.Errorf("upsert operator %s: %w", o.ID, err)
		}
		c.Operators++
	}
	return c, nil
}
