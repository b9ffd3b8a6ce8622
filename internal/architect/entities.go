package architect

import (
	"fmt"
	"strings"

	"github.com/aether-os/engine/internal/models"
)

// GenericTable is emitted when a prompt mentions none of the known entities.
const GenericTable = "generic_items"

type entity struct {
	table    string
	keywords []string
	ddl      string
}

var entities = []entity{
	{
		table:    "users",
		keywords: []string{"user", "account", "profile"},
		ddl: `CREATE TABLE users (
  id UUID DEFAULT uuid_generate_v4() PRIMARY KEY,
  email TEXT UNIQUE NOT NULL,
  full_name TEXT,
  avatar_url TEXT,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
ALTER TABLE users ENABLE ROW LEVEL SECURITY;`,
	},
	{
		table:    "products",
		keywords: []string{"product", "item", "good"},
		ddl: `CREATE TABLE products (
  id UUID DEFAULT uuid_generate_v4() PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price DECIMAL(10, 2) NOT NULL,
  stock_quantity INTEGER DEFAULT 0,
  image_url TEXT,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
ALTER TABLE products ENABLE ROW LEVEL SECURITY;`,
	},
	{
		table:    "orders",
		keywords: []string{"order", "payment", "checkout"},
		ddl: `CREATE TABLE orders (
  id UUID DEFAULT uuid_generate_v4() PRIMARY KEY,
  user_id UUID REFERENCES users(id),
  status TEXT DEFAULT 'pending',
  total_amount DECIMAL(10, 2) NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
ALTER TABLE orders ENABLE ROW LEVEL SECURITY;`,
	},
	{
		table:    "posts",
		keywords: []string{"post", "article", "blog"},
		ddl: `CREATE TABLE posts (
  id UUID DEFAULT uuid_generate_v4() PRIMARY KEY,
  user_id UUID REFERENCES users(id),
  title TEXT NOT NULL,
  slug TEXT UNIQUE,
  content TEXT,
  published BOOLEAN DEFAULT FALSE,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
ALTER TABLE posts ENABLE ROW LEVEL SECURITY;`,
	},
}

const genericDDL = `-- Generic Table Structure inferred from input
CREATE TABLE generic_items (
  id UUID DEFAULT uuid_generate_v4() PRIMARY KEY,
  title TEXT NOT NULL,
  metadata JSONB,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);`

func matchEntities(prompt string) []entity {
	p := strings.ToLower(prompt)
	var out []entity
	for _, e := range entities {
		for _, kw := range e.keywords {
			if strings.Contains(p, kw) {
				out = append(out, e)
				break
			}
		}
	}
	if len(out) == 0 && strings.TrimSpace(p) != "" {
		out = append(out, entity{table: GenericTable, ddl: genericDDL})
	}
	return out
}

// ExtractEntities returns the table names a prompt implies, in a fixed order.
// A blank prompt yields no tables.
func ExtractEntities(prompt string) []string {
	matched := matchEntities(prompt)
	tables := make([]string, 0, len(matched))
	for _, e := range matched {
		tables = append(tables, e.table)
	}
	return tables
}

// GenerateSQL renders a migration script for the tables a prompt implies.
func GenerateSQL(prompt string) string {
	matched := matchEntities(prompt)
	blocks := make([]string, 0, len(matched))
	for _, e := range matched {
		blocks = append(blocks, e.ddl)
	}
	return fmt.Sprintf(`-- Auto-generated Migration
-- Based on prompt: "%s"

-- Extensions
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

%s`, prompt, strings.Join(blocks, "\n\n"))
}

// Table operations.
const (
	OpAlter  = "alter"
	OpCreate = "create"
)

// Operation is a planned schema change for one table.
type Operation struct {
	Table  string `json:"table"`
	Action string `json:"action"`
}

// DiffTables classifies tables against the ones already known for a project:
// known tables become alters, new ones creates. Alters are listed first.
func DiffTables(tables, known []string) []Operation {
	seen := make(map[string]bool, len(known))
	for _, t := range known {
		seen[t] = true
	}
	ops := make([]Operation, 0, len(tables))
	for _, t := range tables {
		if seen[t] {
			ops = append(ops, Operation{Table: t, Action: OpAlter})
		}
	}
	for _, t := range tables {
		if !seen[t] {
			ops = append(ops, Operation{Table: t, Action: OpCreate})
		}
	}
	return ops
}

// MergeTables returns known followed by any tables not already in it.
func MergeTables(known, tables []string) []string {
	seen := make(map[string]bool, len(known)+len(tables))
	out := make([]string, 0, len(known)+len(tables))
	for _, list := range [][]string{known, tables} {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// PipelineGraph is the fixed graph shown for an autobuild plan.
func PipelineGraph() models.WorkflowGraph {
	return models.WorkflowGraph{
		Nodes: []models.Node{
			withType(models.At("n1", "User Prompt", 120, 40), "input"),
			models.At("n2", "Planning", 120, 140),
			models.At("n3", "Visual Architect", 320, 140),
			models.At("n4", "Coding Loop", 520, 140),
			withType(models.At("n5", "Sync GitHub/Vercel", 720, 140), "output"),
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "n1", Target: "n2", Animated: true},
			{ID: "e2", Source: "n2", Target: "n3"},
			{ID: "e3", Source: "n3", Target: "n4"},
			{ID: "e4", Source: "n4", Target: "n5"},
		},
	}
}

func withType(n models.Node, typ string) models.Node {
	n.Type = typ
	return n
}
