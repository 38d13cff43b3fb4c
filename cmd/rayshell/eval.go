package main

import (
	"os"

	"github.com/rayshell/rayshell/internal/ast"
	"github.com/rayshell/rayshell/internal/executor"
	"github.com/rayshell/rayshell/internal/expander"
	"github.com/rayshell/rayshell/internal/lexer"
	"github.com/rayshell/rayshell/internal/parser"
)

// evalLine runs one piece of source text through the full pipeline:
// Lexer -> Parser -> Expander -> Executor, the same four stages the
// original's runOnce/repl functions chain together.
func evalLine(sh *executor.Shell, src string) (int, error) {
	tokens, err := lexer.New(src).Tokenize()
	if err != nil {
		return 1, err
	}

	tree, err := parser.Parse(tokens)
	if err != nil {
		return 1, err
	}
	if tree == nil {
		return 0, nil
	}

	dumpASTIfEnabled(tree)

	exp := expander.New(expander.OSEnviron{}, sh)
	expanded, err := exp.Expand(tree)
	if err != nil {
		return 1, err
	}

	return sh.Run(expanded)
}

// dumpASTIfEnabled writes the parsed tree to the path named by
// RAYSHELL_AST_DUMP, if set, the debug facility spec.md §6 calls for.
// Failures are swallowed: a broken dump path should never stop a command
// from running.
func dumpASTIfEnabled(node ast.Node) {
	path := os.Getenv("RAYSHELL_AST_DUMP")
	if path == "" {
		return
	}
	b, err := dumpAST(node)
	if err != nil {
		return
	}
	os.WriteFile(path, b, 0o644)
}

// dumpAST mirrors the teacher's parserDebug helper that serializes the
// tree to JSON for inspection.
func dumpAST(node ast.Node) ([]byte, error) {
	return ast.Dump(node)
}
