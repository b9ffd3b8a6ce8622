package architect

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aether-os/engine/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMatchFixture(t *testing.T) {
	cases := []struct {
		prompt string
		want   string
	}{
		{"I want an online SHOP for sneakers", FixtureEcommerce},
		{"a small store front", FixtureEcommerce},
		{"ecommerce with cart", FixtureEcommerce},
		{"trang web bán hàng", FixtureEcommerce},
		{"personal blog", FixtureBlog},
		{"daily news portal", FixtureBlog},
		{"headless CMS", FixtureBlog},
		{"trang tin tức", FixtureBlog},
		{"a blog with a store", FixtureEcommerce},
		{"inventory tracker", FixtureDefault},
		{"", FixtureDefault},
	}
	for _, tc := range cases {
		t.Run(tc.prompt, func(t *testing.T) {
			name, bp := MatchFixture(tc.prompt)
			require.Equal(t, tc.want, name)
			require.NotEmpty(t, bp.SQL)
			require.NotEmpty(t, bp.Nodes)
			require.NotEmpty(t, bp.Edges)
		})
	}
}

func TestMatchFixtureReturnsCopy(t *testing.T) {
	_, a := MatchFixture("shop")
	a.Nodes[0].Label = "mutated"

	_, b := MatchFixture("shop")
	require.Equal(t, "Customer Visit", b.Nodes[0].Label)

	*a.Nodes[1].Y = 999
	_, c := MatchFixture("shop")
	require.Equal(t, 100.0, *c.Nodes[1].Y)
}

func TestFixtureNodesKeepZeroCoordinates(t *testing.T) {
	for _, prompt := range []string{"my shop", "a blog", "a todo app"} {
		_, bp := MatchFixture(prompt)

		raw, err := json.Marshal(bp.Nodes[0])
		require.NoError(t, err)
		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw, &fields))
		require.Contains(t, fields, "x", prompt)
		require.Contains(t, fields, "y", prompt)
		require.Equal(t, 0.0, fields["y"], prompt)

		raw, err = json.Marshal(bp)
		require.NoError(t, err)
		var back Blueprint
		require.NoError(t, json.Unmarshal(raw, &back))
		if diff := cmp.Diff(bp, back); diff != "" {
			t.Fatalf("%s: round trip mismatch (-want +got):\n%s", prompt, diff)
		}
	}
}

func TestNestedNodesHaveNoFlatCoordinates(t *testing.T) {
	raw, err := json.Marshal(SimulatedPlan().Nodes[0])
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"x":`)
	require.Contains(t, string(raw), `"position":`)
}

func TestExtractEntities(t *testing.T) {
	cases := []struct {
		prompt string
		want   []string
	}{
		{"Users can place an order for a product", []string{"users", "products", "orders"}},
		{"article feed with profile pages", []string{"users", "posts"}},
		{"something else entirely", []string{GenericTable}},
		{"   ", []string{}},
	}
	for _, tc := range cases {
		got := ExtractEntities(tc.prompt)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ExtractEntities(%q) mismatch (-want +got):\n%s", tc.prompt, diff)
		}
	}
}

func TestExtractEntitiesIsIdempotent(t *testing.T) {
	prompt := "a checkout flow for goods and accounts"
	require.Equal(t, ExtractEntities(prompt), ExtractEntities(prompt))
}

func TestDiffTables(t *testing.T) {
	tables := []string{"users", "products", "orders"}

	t.Run("nothing known creates everything", func(t *testing.T) {
		ops := DiffTables(tables, nil)
		require.Len(t, ops, 3)
		for _, op := range ops {
			require.Equal(t, OpCreate, op.Action)
		}
	})

	t.Run("everything known alters everything", func(t *testing.T) {
		ops := DiffTables(tables, tables)
		for _, op := range ops {
			require.Equal(t, OpAlter, op.Action)
		}
	})

	t.Run("alters come first", func(t *testing.T) {
		ops := DiffTables(tables, []string{"orders"})
		want := []Operation{
			{Table: "orders", Action: OpAlter},
			{Table: "users", Action: OpCreate},
			{Table: "products", Action: OpCreate},
		}
		if diff := cmp.Diff(want, ops); diff != "" {
			t.Errorf("DiffTables mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestMergeTables(t *testing.T) {
	got := MergeTables([]string{"users", "posts"}, []string{"posts", "orders"})
	require.Equal(t, []string{"users", "posts", "orders"}, got)
}

func TestGenerateSQL(t *testing.T) {
	sql := GenerateSQL("users and posts")
	require.Contains(t, sql, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`)
	require.Contains(t, sql, "CREATE TABLE users")
	require.Contains(t, sql, "CREATE TABLE posts")
	require.NotContains(t, sql, "generic_items")

	require.Contains(t, GenerateSQL("zzz"), "CREATE TABLE generic_items")
}

func TestPlans(t *testing.T) {
	fb := FallbackPlan()
	require.Equal(t, "Fallback architecture plan", fb.Description)
	require.True(t, strings.HasPrefix(fb.SQL, "CREATE TABLE items"))
	require.Len(t, fb.Nodes, 3)
	require.Equal(t, "UI", fb.Nodes[0].Data["label"])

	sim := SimulatedPlan()
	require.Len(t, sim.Nodes, 3)
	require.Equal(t, "e1-2", sim.Edges[0].ID)
	require.NotNil(t, sim.Nodes[2].Position)
	require.Equal(t, 300.0, sim.Nodes[2].Position.Y)
}

func TestEnsureRequiredFiles(t *testing.T) {
	t.Run("appends missing defaults in order", func(t *testing.T) {
		in := []models.File{{Path: "src/app/page.tsx", Content: "x"}, {Path: "tsconfig.json", Content: "{}"}}
		out := EnsureRequiredFiles(in, "shop")

		paths := make([]string, 0, len(out))
		for _, f := range out {
			paths = append(paths, f.Path)
		}
		want := []string{
			"src/app/page.tsx", "tsconfig.json",
			"package.json", "next.config.js", "next-env.d.ts", "src/app/layout.tsx", "src/app/globals.css",
		}
		require.Equal(t, want, paths)
		require.Equal(t, "{}", out[1].Content)
		require.Contains(t, out[2].Content, `"name": "shop"`)
	})

	t.Run("complete set is untouched", func(t *testing.T) {
		files := FallbackFiles("")
		out := EnsureRequiredFiles(files, "ignored")
		if diff := cmp.Diff(files, out); diff != "" {
			t.Errorf("unexpected change (-want +got):\n%s", diff)
		}
		require.Contains(t, files[0].Content, `"name": "aether-app"`)
	})
}

func TestPipelineGraph(t *testing.T) {
	g := PipelineGraph()
	require.Len(t, g.Nodes, 5)
	require.Len(t, g.Edges, 4)
	require.Equal(t, "Sync GitHub/Vercel", g.Nodes[4].Label)
}
