package stack

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path string, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestMerge_NestedRightBias(t *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1, "y": 2}}
	incoming := map[string]any{"a": map[string]any{"y": 3, "z": 4}}
	got := Merge(base, incoming)
	want := map[string]any{"a": map[string]any{"x": 1, "y": 3, "z": 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("merge=%v want=%v", got, want)
	}
	if base["a"].(map[string]any)["y"] != 2 {
		t.Fatalf("base mutated: %v", base)
	}
}

func TestMerge_ArraysReplacedAndKindMismatch(t *testing.T) {
	base := map[string]any{
		"list":  []any{"a", "b"},
		"mixed": map[string]any{"k": 1},
	}
	incoming := map[string]any{
		"list":  []any{"c"},
		"mixed": "scalar",
	}
	got := Merge(base, incoming)
	if !reflect.DeepEqual(got["list"], []any{"c"}) {
		t.Fatalf("list=%v", got["list"])
	}
	if got["mixed"] != "scalar" {
		t.Fatalf("mixed=%v", got["mixed"])
	}
}

func TestResolve_IncludeOrderAndBodyPrecedence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "base.yaml"), `
k: include
shared:
  from: base
  base_only: true
agents:
  - name: base-agent
`)
	writeFile(t, filepath.Join(root, "layers", "second.yaml"), `
shared:
  from: second
agents:
  - name: second-agent
    model: m2
`)
	writeFile(t, filepath.Join(root, "top.yaml"), `
include:
  - base.yaml
  - layers/second.yaml
k: body
`)

	doc, err := ResolveFile(filepath.Join(root, "top.yaml"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if doc["k"] != "body" {
		t.Fatalf("k=%v", doc["k"])
	}
	if _, ok := doc["include"]; ok {
		t.Fatalf("include key survived resolution: %v", doc)
	}
	shared := doc["shared"].(map[string]any)
	if shared["from"] != "second" || shared["base_only"] != true {
		t.Fatalf("shared=%v", shared)
	}
	agents := doc.Agents()
	if len(agents) != 1 || agents[0].Name != "second-agent" || agents[0].Model != "m2" {
		t.Fatalf("agents=%+v", agents)
	}
}

func TestResolve_TransitiveIncludeLosesToIncluder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "c.yaml"), "v: c\nonly_c: 1\n")
	writeFile(t, filepath.Join(root, "b.yaml"), "include: [c.yaml]\nv: b\n")
	writeFile(t, filepath.Join(root, "a.yaml"), "include: [b.yaml]\n")

	doc, err := ResolveFile(filepath.Join(root, "a.yaml"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if doc["v"] != "b" || doc["only_c"] != 1 {
		t.Fatalf("doc=%v", doc)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x.yaml"), "m: {a: 1, b: [1, 2]}\n")
	writeFile(t, filepath.Join(root, "y.yaml"), "m: {b: [3], c: {d: e}}\n")
	writeFile(t, filepath.Join(root, "top.yaml"), "include: [x.yaml, y.yaml]\nm: {a: 9}\n")

	first, err := ResolveFile(filepath.Join(root, "top.yaml"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := ResolveFile(filepath.Join(root, "top.yaml"))
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("resolution %d differs: %v vs %v", i, first, again)
		}
	}
	m := first["m"].(map[string]any)
	if m["a"] != 9 || !reflect.DeepEqual(m["b"], []any{3}) {
		t.Fatalf("m=%v", m)
	}
}

func TestResolve_CycleReportsPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.yaml"), "include: [b.yaml]\n")
	writeFile(t, filepath.Join(root, "b.yaml"), "include: [a.yaml]\n")

	_, err := ResolveFile(filepath.Join(root, "a.yaml"))
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.Path) != 3 {
		t.Fatalf("path=%v", cycle.Path)
	}
	if filepath.Base(cycle.Path[0]) != "a.yaml" || filepath.Base(cycle.Path[1]) != "b.yaml" || filepath.Base(cycle.Path[2]) != "a.yaml" {
		t.Fatalf("path=%v", cycle.Path)
	}
	if !strings.Contains(err.Error(), " -> ") {
		t.Fatalf("message=%q", err.Error())
	}
}

func TestResolve_SelfInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "self.yaml"), "include: [self.yaml]\n")
	_, err := ResolveFile(filepath.Join(root, "self.yaml"))
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestResolve_DiamondIsNotACycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shared.yaml"), "s: 1\n")
	writeFile(t, filepath.Join(root, "left.yaml"), "include: [shared.yaml]\nl: 1\n")
	writeFile(t, filepath.Join(root, "right.yaml"), "include: [shared.yaml]\nr: 1\n")
	writeFile(t, filepath.Join(root, "top.yaml"), "include: [left.yaml, right.yaml]\n")

	doc, err := ResolveFile(filepath.Join(root, "top.yaml"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if doc["s"] != 1 || doc["l"] != 1 || doc["r"] != 1 {
		t.Fatalf("doc=%v", doc)
	}
}

func TestResolve_MissingInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.yaml"), "include: [missing.yaml]\n")
	_, err := ResolveFile(filepath.Join(root, "a.yaml"))
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if filepath.Base(nf.Path) != "missing.yaml" || filepath.Base(nf.IncludedFrom) != "a.yaml" {
		t.Fatalf("err=%+v", nf)
	}
}

func TestResolve_ShapeErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "list.yaml"), "- a\n- b\n")
	writeFile(t, filepath.Join(root, "badinclude.yaml"), "include: base.yaml\n")
	writeFile(t, filepath.Join(root, "empty.yaml"), "")

	for _, name := range []string{"list.yaml", "badinclude.yaml"} {
		_, err := ResolveFile(filepath.Join(root, name))
		var shape *ShapeError
		if !errors.As(err, &shape) {
			t.Fatalf("%s: expected ShapeError, got %v", name, err)
		}
	}
	doc, err := ResolveFile(filepath.Join(root, "empty.yaml"))
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("empty doc=%v", doc)
	}
}

func TestAncestry_WithDoesNotShareBacking(t *testing.T) {
	base := Ancestry{}.With("/a")
	left := base.With("/left")
	right := base.With("/right")
	if left.Contains("/right") || right.Contains("/left") {
		t.Fatalf("siblings interfere: left=%v right=%v", left.Paths(), right.Paths())
	}
	if len(base.Paths()) != 1 {
		t.Fatalf("base mutated: %v", base.Paths())
	}
}
