package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/typegrade/internal/model"
)

const sampleLayout = `name = "inscript"
lang = "hi"

[keys]
k = { normal = "क", shift = "ख" }
i = { normal = "ि" }
" " = { normal = " " }
`

func writeLayout(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name+".toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write layout: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeLayout(t, dir, "inscript", sampleLayout)
	layout, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(layout) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(layout))
	}
	if layout["k"].Normal != "क" || layout["k"].Shift != "ख" {
		t.Fatalf("unexpected mapping for k: %+v", layout["k"])
	}
}

func TestLoadRejectsEmptyLayout(t *testing.T) {
	dir := t.TempDir()
	path := writeLayout(t, dir, "empty", "name = \"empty\"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for layout without keys")
	}
}

func TestLoadRejectsMissingNormal(t *testing.T) {
	dir := t.TempDir()
	path := writeLayout(t, dir, "bad", "[keys]\nk = { shift = \"X\" }\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for key without normal character")
	}
}

func TestResolve(t *testing.T) {
	layout := model.LayoutMap{
		"k": {Normal: "क", Shift: "ख"},
		"i": {Normal: "ि"},
	}
	cases := []struct {
		name   string
		ev     model.KeyEvent
		expect string
		ok     bool
	}{
		{name: "normal", ev: model.KeyEvent{Key: "k"}, expect: "क", ok: true},
		{name: "shift", ev: model.KeyEvent{Key: "k", Shift: true}, expect: "ख", ok: true},
		{name: "shift without mapping", ev: model.KeyEvent{Key: "i", Shift: true}, expect: "ि", ok: true},
		{name: "unmapped", ev: model.KeyEvent{Key: "z"}, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resolve(layout, tc.ev)
			if ok != tc.ok || got != tc.expect {
				t.Fatalf("Resolve = (%q, %v), want (%q, %v)", got, ok, tc.expect, tc.ok)
			}
		})
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir, "inscript", sampleLayout)
	writeLayout(t, dir, "remington", sampleLayout)
	names, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 layouts, got %v", names)
	}
	missing, err := List(filepath.Join(dir, "absent"))
	if err != nil {
		t.Fatalf("list missing dir: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing directory, got %v", missing)
	}
}
