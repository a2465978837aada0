package patch

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCatalog = `
catalog = {
    ["5875"] = {
        { name = "core", edits = {
            { addr = 0x10, bytes = { 0xAB, 0xCD } },
            { addr = 32, bytes = { 1 } },
        } },
        { name = "nocheck", edits = {
            { addr = 0x100, bytes = { 0x90, 0x90 } },
        } },
    },
    ["8606"] = {
        { name = "core", edits = {
            { addr = 0x40, bytes = { 0xEB } },
        } },
    },
}
`

func TestLoadString(t *testing.T) {
	catalog, err := LoadString(sampleCatalog)
	if err != nil {
		t.Fatalf("LoadString() error: %v", err)
	}

	builds := catalog.Builds()
	if len(builds) != 2 || builds[0] != "5875" || builds[1] != "8606" {
		t.Fatalf("builds = %v", builds)
	}

	categories := catalog.CategoriesFor("5875")
	if len(categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(categories))
	}
	if categories[0].Name != "core" || categories[1].Name != "nocheck" {
		t.Errorf("category order = %s, %s", categories[0].Name, categories[1].Name)
	}

	edits := categories[0].Edits
	if len(edits) != 2 {
		t.Fatalf("core edits = %d, want 2", len(edits))
	}
	if edits[0].Address != 0x10 {
		t.Errorf("edit address = 0x%x, want 0x10", edits[0].Address)
	}
	if len(edits[0].Values) != 2 || edits[0].Values[0] != 0xAB || edits[0].Values[1] != 0xCD {
		t.Errorf("edit values = %v", edits[0].Values)
	}
}

func TestLoadStringErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "syntax_error", src: `catalog = {`},
		{name: "missing_catalog_table", src: `patches = {}`},
		{name: "catalog_not_a_table", src: `catalog = 7`},
		{name: "non_string_build", src: `catalog = { [5875] = {} }`},
		{
			name: "category_without_name",
			src:  `catalog = { ["5875"] = { { edits = {} } } }`,
		},
		{
			name: "category_without_edits",
			src:  `catalog = { ["5875"] = { { name = "core" } } }`,
		},
		{
			name: "edit_without_addr",
			src:  `catalog = { ["5875"] = { { name = "core", edits = { { bytes = { 1 } } } } } }`,
		},
		{
			name: "byte_out_of_range",
			src:  `catalog = { ["5875"] = { { name = "core", edits = { { addr = 0, bytes = { 256 } } } } } }`,
		},
		{
			name: "overlapping_edits",
			src:  `catalog = { ["5875"] = { { name = "core", edits = { { addr = 0, bytes = { 1, 2 } }, { addr = 1, bytes = { 3 } } } } } }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadString(tt.src); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadStringSandbox(t *testing.T) {
	// Catalogs are data. Anything reaching for os/io/load must fail.
	tests := []struct {
		name string
		src  string
	}{
		{name: "os_removed", src: `os.exit(1)`},
		{name: "io_removed", src: `io.open("/etc/passwd")`},
		{name: "require_removed", src: `require("socket")`},
		{name: "dofile_removed", src: `dofile("x.lua")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadString(tt.src); err == nil {
				t.Error("expected sandbox violation to fail")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patches.lua")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	catalog, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(catalog.CategoriesFor("5875")) != 2 {
		t.Error("catalog not loaded from file")
	}
}

func TestLoadFileMissing(t *testing.T) {
	catalog, err := LoadFile(filepath.Join(t.TempDir(), "patches.lua"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(catalog.Builds()) != 0 {
		t.Error("missing catalog file should yield an empty catalog")
	}
}
