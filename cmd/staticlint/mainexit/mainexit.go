// Package mainexit defines an analyzer that forbids terminating the process
// directly from main.main. Both os.Exit and the log.Fatal family skip the
// deferred cleanup of main, which for the sync server means an unflushed
// storage file and an unsynced logger.
package mainexit

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer reports os.Exit and log.Fatal, log.Fatalf, log.Fatalln calls made
// in the body of main.main.
var Analyzer = &analysis.Analyzer{
	Name: "mainexit",
	Doc:  "prohibits os.Exit and log.Fatal* calls in main.main",
	Run:  run,
}

// forbidden maps an import path to the functions that must not be called.
var forbidden = map[string]map[string]bool{
	"os":  {"Exit": true},
	"log": {"Fatal": true, "Fatalf": true, "Fatalln": true},
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() != "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		filename := pass.Fset.File(file.Pos()).Name()
		if isGoBuildCacheFile(filename) {
			continue
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Name.Name != "main" || fn.Recv != nil || fn.Body == nil {
				continue
			}

			ast.Inspect(fn.Body, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}

				sel, ok := call.Fun.(*ast.SelectorExpr)
				if !ok {
					return true
				}

				ident, ok := sel.X.(*ast.Ident)
				if !ok {
					return true
				}

				pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
				if !ok {
					return true
				}

				path := pkgName.Imported().Path()
				if forbidden[path][sel.Sel.Name] {
					pass.Reportf(call.Pos(), "avoid calling %s.%s in main.main", path, sel.Sel.Name)
				}

				return true
			})
		}
	}

	return nil, nil
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/")
}
