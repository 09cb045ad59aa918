package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("ended.checkmate", map[string]any{"Winner": "white"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Checkmate. white wins." {
		t.Fatalf("unexpected text: %q", got)
	}
	got, err = c.Render("ended.cancelled", map[string]any{"By": "", "Reason": "stale"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "The match was cancelled: stale." {
		t.Fatalf("unexpected text: %q", got)
	}
	if !c.Has("rejected.out_of_turn") {
		t.Fatalf("missing rejected.out_of_turn")
	}
}

func TestMissingDataIsAnError(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("ended.checkmate", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got := c.Text("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("rejected:\n  out_of_turn: \"Wait for {{.Opponent}}.\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("rejected.out_of_turn", map[string]string{"Opponent": "Bob"})
	if err != nil || got != "Wait for Bob." {
		t.Fatalf("override not applied: %q %v", got, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("rejected:\n  out_of_turn: dup\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatalf("expected error for int leaf")
	}
}
