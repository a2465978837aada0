package patch

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
)

// The patch catalog is authored as a declarative Lua file. The expected
// shape is a global `catalog` table keyed by build identifier:
//
//	catalog = {
//	    ["5875"] = {
//	        { name = "core", edits = {
//	            { addr = 0x10, bytes = { 0xAB, 0xCD } },
//	        } },
//	    },
//	}
//
// The VM is sandboxed: catalogs are data, not programs with side effects.

// ParseError represents a catalog parsing error with a friendly message.
type ParseError struct {
	Message string // user-friendly message
	Detail  string // technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// LoadFile loads and validates the catalog at path. A missing file yields
// an empty catalog: deployments without byte patches are valid.
func LoadFile(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return EmptyCatalog(), nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return LoadString(string(src))
}

// LoadString parses a catalog from Lua source. Useful for tests and
// embedded catalogs.
func LoadString(src string) (*Catalog, error) {
	L := newSandboxedVM()
	defer L.Close()

	if err := L.DoString(src); err != nil {
		return nil, &ParseError{Message: "Lua syntax error", Detail: err.Error()}
	}
	return extractCatalog(L)
}

// sandboxLuaVM strips everything that could execute commands, touch the
// filesystem, or load external code. string/table/math and the basic
// utilities stay available.
func sandboxLuaVM(L *lua.LState) {
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("debug", lua.LNil)
}

func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}

func extractCatalog(L *lua.LState) (*Catalog, error) {
	root := L.GetGlobal("catalog")
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'catalog' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	builds := map[string][]Category{}
	var extractErr error

	root.(*lua.LTable).ForEach(func(key, value lua.LValue) {
		if extractErr != nil {
			return
		}
		build, ok := key.(lua.LString)
		if !ok {
			extractErr = &ParseError{
				Message: "invalid build identifier",
				Detail:  fmt.Sprintf("expected string key, got %s", key.Type()),
			}
			return
		}
		categoryList, ok := value.(*lua.LTable)
		if !ok {
			extractErr = &ParseError{
				Message: fmt.Sprintf("invalid category list for build %q", string(build)),
				Detail:  fmt.Sprintf("expected table, got %s", value.Type()),
			}
			return
		}

		categories, err := extractCategories(string(build), categoryList)
		if err != nil {
			extractErr = err
			return
		}
		builds[string(build)] = categories
	})
	if extractErr != nil {
		return nil, extractErr
	}

	return NewCatalog(builds)
}

func extractCategories(build string, list *lua.LTable) ([]Category, error) {
	categories := make([]Category, 0, list.Len())

	for i := 1; i <= list.Len(); i++ {
		entry, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, &ParseError{
				Message: fmt.Sprintf("invalid category %d for build %q", i, build),
				Detail:  "expected table with name and edits",
			}
		}

		name, ok := entry.RawGetString("name").(lua.LString)
		if !ok {
			return nil, &ParseError{
				Message: fmt.Sprintf("category %d for build %q has no name", i, build),
				Detail:  "expected string field 'name'",
			}
		}

		editList, ok := entry.RawGetString("edits").(*lua.LTable)
		if !ok {
			return nil, &ParseError{
				Message: fmt.Sprintf("category %q for build %q has no edits", string(name), build),
				Detail:  "expected table field 'edits'",
			}
		}

		edits, err := extractEdits(build, string(name), editList)
		if err != nil {
			return nil, err
		}
		categories = append(categories, Category{Name: string(name), Edits: edits})
	}

	return categories, nil
}

func extractEdits(build, category string, list *lua.LTable) ([]Edit, error) {
	edits := make([]Edit, 0, list.Len())

	for i := 1; i <= list.Len(); i++ {
		entry, ok := list.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, &ParseError{
				Message: fmt.Sprintf("invalid edit %d in category %q for build %q", i, category, build),
				Detail:  "expected table with addr and bytes",
			}
		}

		addr, ok := entry.RawGetString("addr").(lua.LNumber)
		if !ok {
			return nil, &ParseError{
				Message: fmt.Sprintf("edit %d in category %q has no addr", i, category),
				Detail:  "expected number field 'addr'",
			}
		}

		byteList, ok := entry.RawGetString("bytes").(*lua.LTable)
		if !ok {
			return nil, &ParseError{
				Message: fmt.Sprintf("edit %d in category %q has no bytes", i, category),
				Detail:  "expected table field 'bytes'",
			}
		}

		values := make([]byte, 0, byteList.Len())
		for j := 1; j <= byteList.Len(); j++ {
			n, ok := byteList.RawGetInt(j).(lua.LNumber)
			if !ok || n < 0 || n > 255 || float64(n) != float64(int(n)) {
				return nil, &ParseError{
					Message: fmt.Sprintf("invalid byte %d of edit %d in category %q", j, i, category),
					Detail:  "expected integer in 0..255",
				}
			}
			values = append(values, byte(n))
		}

		edits = append(edits, Edit{Address: int64(addr), Values: values})
	}

	return edits, nil
}
