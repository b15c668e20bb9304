package api

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

func TestHandlers_CarryRouteAnnotations(t *testing.T) {
	fset := token.NewFileSet()
	for _, name := range []string{"handlers.go", "files.go"} {
		f, err := parser.ParseFile(fset, name, nil, parser.ParseComments)
		if err != nil {
			t.Fatal(err)
		}
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || !fn.Name.IsExported() {
				continue
			}
			if fn.Doc == nil || !strings.Contains(fn.Doc.Text(), "@Router") {
				t.Errorf("%s: %s has no @Router annotation", name, fn.Name.Name)
			}
		}
	}
}
