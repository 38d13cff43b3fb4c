package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rayshell/rayshell/internal/ast"
	"github.com/rayshell/rayshell/internal/errs"
	"github.com/rayshell/rayshell/internal/lexer"
)

func parse(t *testing.T, src string) ast.Node {
	t.Helper()
	tokens, err := lexer.New(src).Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	node, err := Parse(tokens)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	return node
}

func TestParseSimpleCommand(t *testing.T) {
	node := parse(t, "echo hi there")
	want := &ast.Command{
		Name: ast.Word{Kind: ast.WordPlain, Text: "echo"},
		Args: []ast.Word{
			{Kind: ast.WordPlain, Text: "hi"},
			{Kind: ast.WordPlain, Text: "there"},
		},
	}
	if diff := cmp.Diff(want, node); diff != "" {
		t.Errorf("parse tree mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRedirections(t *testing.T) {
	node := parse(t, "sort < in.txt > out.txt 2>> err.txt")
	cmd := node.(*ast.Command)
	if cmd.Stdin == nil || cmd.Stdin.Text != "in.txt" {
		t.Errorf("Stdin = %+v", cmd.Stdin)
	}
	if cmd.Stdout == nil || cmd.Stdout.Text != "out.txt" || cmd.StdoutAppend {
		t.Errorf("Stdout = %+v append=%v", cmd.Stdout, cmd.StdoutAppend)
	}
	if cmd.Stderr == nil || cmd.Stderr.Text != "err.txt" || !cmd.StderrAppend {
		t.Errorf("Stderr = %+v append=%v", cmd.Stderr, cmd.StderrAppend)
	}
}

func plainWord(text string) ast.Word { return ast.Word{Kind: ast.WordPlain, Text: text} }

func TestParsePipeline(t *testing.T) {
	node := parse(t, "cat file | grep foo | wc -l")
	want := &ast.Pipeline{
		Commands: []*ast.Command{
			{Name: plainWord("cat"), Args: []ast.Word{plainWord("file")}},
			{Name: plainWord("grep"), Args: []ast.Word{plainWord("foo")}},
			{Name: plainWord("wc"), Args: []ast.Word{plainWord("-l")}},
		},
	}
	if diff := cmp.Diff(want, node); diff != "" {
		t.Errorf("parse tree mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLogicalChain(t *testing.T) {
	node := parse(t, "a && b || c")
	op, ok := node.(*ast.BinaryOp)
	if !ok {
		t.Fatalf("node = %T, want *ast.BinaryOp", node)
	}
	if op.Op != "||" {
		t.Errorf("outer Op = %q, want ||", op.Op)
	}
	left, ok := op.Left.(*ast.BinaryOp)
	if !ok || left.Op != "&&" {
		t.Errorf("Left = %+v, want a BinaryOp(&&)", op.Left)
	}
}

func TestParseAssignmentOnly(t *testing.T) {
	node := parse(t, "FOO=bar")
	assign, ok := node.(*ast.Assignment)
	if !ok {
		t.Fatalf("node = %T, want *ast.Assignment", node)
	}
	if assign.Name != "FOO" || assign.Value == nil || assign.Value.Text != "bar" {
		t.Errorf("Assignment = %+v", assign)
	}
}

func TestParseAssignmentList(t *testing.T) {
	node := parse(t, "FOO=1 BAR=2")
	one, two := plainWord("1"), plainWord("2")
	want := &ast.AssignmentList{
		Assignments: []*ast.Assignment{
			{Name: "FOO", Value: &one},
			{Name: "BAR", Value: &two},
		},
	}
	if diff := cmp.Diff(want, node); diff != "" {
		t.Errorf("parse tree mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVarRef(t *testing.T) {
	node := parse(t, "@HOME")
	ref, ok := node.(*ast.VarRef)
	if !ok {
		t.Fatalf("node = %T, want *ast.VarRef", node)
	}
	if ref.Name != "HOME" {
		t.Errorf("Name = %q, want HOME", ref.Name)
	}
}

func TestParseIfElse(t *testing.T) {
	node := parse(t, "if (a == b) -> { echo yes } else -> { echo no }")
	ifNode, ok := node.(*ast.If)
	if !ok {
		t.Fatalf("node = %T, want *ast.If", node)
	}
	cond, ok := ifNode.Condition.(*ast.BinaryOp)
	if !ok || cond.Op != "==" {
		t.Errorf("Condition = %+v", ifNode.Condition)
	}
	if _, ok := ifNode.Consequent.(*ast.Block); !ok {
		t.Errorf("Consequent = %T, want *ast.Block", ifNode.Consequent)
	}
	if _, ok := ifNode.Alternative.(*ast.Block); !ok {
		t.Errorf("Alternative = %T, want *ast.Block", ifNode.Alternative)
	}
}

func TestParseIfElif(t *testing.T) {
	node := parse(t, "if (a == b) -> { echo 1 } elif (c == d) -> { echo 2 }")
	ifNode := node.(*ast.If)
	elif, ok := ifNode.Alternative.(*ast.If)
	if !ok {
		t.Fatalf("Alternative = %T, want *ast.If", ifNode.Alternative)
	}
	cond := elif.Condition.(*ast.BinaryOp)
	if cond.Op != "==" {
		t.Errorf("elif Condition.Op = %q", cond.Op)
	}
}

func TestParseForNotImplemented(t *testing.T) {
	tokens, err := lexer.New("for x in y { echo x }").Tokenize()
	if err != nil {
		t.Fatalf("lexer: %v", err)
	}
	_, err = Parse(tokens)
	niErr, ok := err.(*errs.NotImplementedError)
	if !ok {
		t.Fatalf("err = %v, want *errs.NotImplementedError", err)
	}
	if niErr.Keyword != "for" {
		t.Errorf("Keyword = %q, want for", niErr.Keyword)
	}
}

func TestParseBackgroundCommand(t *testing.T) {
	node := parse(t, "sleep 10 &")
	cmd := node.(*ast.Command)
	if !cmd.Background {
		t.Error("Background = false, want true")
	}
}

func TestParseMultipleStatementsWrapInBlock(t *testing.T) {
	node := parse(t, "echo a\necho b")
	block, ok := node.(*ast.Block)
	if !ok {
		t.Fatalf("node = %T, want *ast.Block", node)
	}
	if len(block.Statements) != 2 {
		t.Errorf("len(Statements) = %d, want 2", len(block.Statements))
	}
}
