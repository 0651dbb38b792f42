package xpack

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Packages below the packer classify failures with errs sentinels through
// the standard library. The packer, the command and this package add context
// with github.com/go-faster/errors.
var (
	sentinelPackages = []string{
		"errs", "format", "filter", "section", "compress", "linker", "stub", "endian",
		"internal/hash", "internal/options", "internal/pool",
	}
	wrappingPackages = []string{".", "packer", "packer/dossys", "cmd/xpack"}
)

func parseSources(t *testing.T, dir string) map[string]*ast.File {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	fset := token.NewFileSet()
	files := make(map[string]*ast.File)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, 0)
		require.NoError(t, err, name)
		files[name] = f
	}
	require.NotEmpty(t, files, dir)

	return files
}

func imports(f *ast.File, path string) bool {
	for _, imp := range f.Imports {
		if p, err := strconv.Unquote(imp.Path.Value); err == nil && p == path {
			return true
		}
	}

	return false
}

func callsErrorf(f *ast.File) bool {
	found := false
	ast.Inspect(f, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok && id.Name == "fmt" && sel.Sel.Name == "Errorf" {
			found = true
		}

		return !found
	})

	return found
}

func TestErrorConventions(t *testing.T) {
	for _, dir := range sentinelPackages {
		t.Run(dir, func(t *testing.T) {
			for name, f := range parseSources(t, dir) {
				require.False(t, imports(f, "github.com/go-faster/errors"), "%s/%s", dir, name)
			}
		})
	}

	for _, dir := range wrappingPackages {
		t.Run(dir, func(t *testing.T) {
			for name, f := range parseSources(t, dir) {
				require.False(t, imports(f, "errors"), "%s/%s imports the standard errors package", dir, name)
				require.False(t, callsErrorf(f), "%s/%s calls fmt.Errorf", dir, name)
			}
		})
	}
}
