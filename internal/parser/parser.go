// Package parser builds an AST from a token stream via recursive
// descent, following the teacher's single-cursor style (peek/peekN/
// advance over a token slice, no backtracking).
package parser

import (
	"strings"

	"github.com/rayshell/rayshell/core/invariant"
	"github.com/rayshell/rayshell/internal/ast"
	"github.com/rayshell/rayshell/internal/errs"
	"github.com/rayshell/rayshell/internal/token"
)

// Parser consumes a fixed token slice and produces a single ast.Node (or
// nil for empty input).
type Parser struct {
	tokens []token.Token
	pos    int
}

// New creates a Parser over a complete token stream (as produced by
// lexer.Tokenize).
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse consumes the whole token stream and returns the resulting tree.
// A nil, nil result means the input had no statements at all.
func Parse(tokens []token.Token) (ast.Node, error) {
	return New(tokens).Parse()
}

func (p *Parser) Parse() (ast.Node, error) {
	p.consumeSeparators()

	var statements []ast.Node
	for p.peek().Kind != token.EOF {
		node, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		if node != nil {
			statements = append(statements, node)
		}
		p.consumeSeparators()
	}

	if len(statements) == 0 {
		return nil, nil
	}
	if len(statements) == 1 {
		return statements[0], nil
	}
	return &ast.Block{Statements: statements}, nil
}

func (p *Parser) peek() token.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token.Token{Kind: token.EOF}
}

func (p *Parser) peekN(n int) token.Token {
	idx := p.pos + n
	if idx >= 0 && idx < len(p.tokens) {
		return p.tokens[idx]
	}
	return token.Token{Kind: token.EOF}
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) consumeSeparators() {
	for p.peek().Kind == token.NEWLINE {
		p.advance()
	}
}

func (p *Parser) syntaxErrorf(message string) error {
	tok := p.peek()
	return &errs.SyntaxError{Message: message, Position: tok.Position, Got: tok.Kind}
}

func (p *Parser) expect(kind token.Kind, message string) (token.Token, error) {
	if p.peek().Kind != kind {
		return token.Token{}, p.syntaxErrorf(message)
	}
	return p.advance(), nil
}

// parseSequence implements the top of the statement grammar: a leading
// reserved word switches into a dedicated statement parser, otherwise it
// is `logical (';' logical)*` producing a left-associative ";" chain.
func (p *Parser) parseSequence() (ast.Node, error) {
	tok := p.peek()
	if tok.Kind == token.WORD && token.IsReserved(tok.Lexeme) {
		p.advance()
		switch strings.ToLower(tok.Lexeme) {
		case "if":
			return p.parseIf()
		case "elif":
			return nil, &errs.SyntaxError{Message: "unexpected 'elif' outside an if block", Position: tok.Position, Got: tok.Kind}
		case "else":
			return nil, &errs.SyntaxError{Message: "unexpected 'else' outside an if block", Position: tok.Position, Got: tok.Kind}
		case "for":
			return nil, &errs.NotImplementedError{Keyword: "for"}
		case "while":
			return nil, &errs.NotImplementedError{Keyword: "while"}
		case "case":
			return nil, &errs.NotImplementedError{Keyword: "case"}
		}
	}

	node, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == token.SEMICOLON {
		p.advance()
		right, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		node = &ast.BinaryOp{Op: ";", Left: node, Right: right}
	}
	return node, nil
}

// parseLogical implements `pipeline (('&&'|'||') pipeline)*`.
func (p *Parser) parseLogical() (ast.Node, error) {
	node, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == token.AND || p.peek().Kind == token.OR {
		op := p.advance()
		right, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		node = &ast.BinaryOp{Op: op.Lexeme, Left: node, Right: right}
		p.consumeSeparators()
	}
	return node, nil
}

// parsePipeline implements `command ('|' command)+` or a bare command,
// collapsing a single member to the Command node itself.
func (p *Parser) parsePipeline() (ast.Node, error) {
	first, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	cmd, ok := first.(*ast.Command)
	if !ok || p.peek().Kind != token.PIPE {
		return first, nil
	}

	cmds := []*ast.Command{cmd}
	for p.peek().Kind == token.PIPE {
		p.advance()
		next, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		nc, ok := next.(*ast.Command)
		if !ok {
			return nil, p.syntaxErrorf("expected a command after '|'")
		}
		cmds = append(cmds, nc)
	}

	background := false
	for _, c := range cmds {
		background = background || c.Background
	}
	return &ast.Pipeline{Commands: cmds, Background: background}, nil
}

func isAssignmentStart(tok token.Token) bool {
	return tok.Kind == token.WORD
}

func (p *Parser) isAssignmentLookahead() bool {
	return isAssignmentStart(p.peek()) && p.peekN(1).Kind == token.EQ
}

func isCommandStart(tok token.Token) bool {
	return tok.Kind == token.WORD || tok.Kind == token.STRING || tok.Kind == token.DSTRING
}

func isRedirection(tok token.Token) bool {
	switch tok.Kind {
	case token.GT, token.LT, token.REDIR_ERR, token.APPEND_OUT, token.APPEND_ERR:
		return true
	default:
		return false
	}
}

func wordKindFor(kind token.Kind) ast.WordKind {
	switch kind {
	case token.STRING:
		return ast.WordSingle
	case token.DSTRING:
		return ast.WordDouble
	default:
		return ast.WordPlain
	}
}

// redirState accumulates redirection targets as the command loop below
// encounters them; more than one of the same kind simply overwrites the
// earlier one, matching a real shell's last-redirection-wins behavior.
type redirState struct {
	stdin, stdout, stderr      *ast.Word
	stdoutAppend, stderrAppend bool
}

func (r redirState) empty() bool {
	return r.stdin == nil && r.stdout == nil && r.stderr == nil
}

func (p *Parser) parseRedirectionInto(r *redirState) error {
	op := p.advance()
	if !isCommandStart(p.peek()) {
		return p.syntaxErrorf("expected a redirection target")
	}
	target := p.advance()
	word := ast.Word{Kind: wordKindFor(target.Kind), Text: target.Lexeme}

	switch op.Kind {
	case token.LT:
		r.stdin = &word
	case token.GT:
		r.stdout = &word
	case token.APPEND_OUT:
		r.stdout = &word
		r.stdoutAppend = true
	case token.REDIR_ERR:
		r.stderr = &word
	case token.APPEND_ERR:
		r.stderr = &word
		r.stderrAppend = true
	default:
		return &errs.SyntaxError{Message: "unrecognized redirection operator", Position: op.Position, Got: op.Kind}
	}
	return nil
}

func (p *Parser) parseAssignment() (*ast.Assignment, error) {
	name := p.advance().Lexeme
	p.advance() // '='

	var value *ast.Word
	if isCommandStart(p.peek()) {
		t := p.advance()
		w := ast.Word{Kind: wordKindFor(t.Kind), Text: t.Lexeme}
		value = &w
	}
	return &ast.Assignment{Name: name, Value: value}, nil
}

// parseCommand greedily consumes assignments, a name, arguments,
// redirections, and a trailing '&' — see spec §4.2 "Command". It may
// return a *ast.Command, *ast.Assignment, *ast.AssignmentList,
// *ast.VarRef, or nil (an empty statement).
func (p *Parser) parseCommand() (ast.Node, error) {
	var assignments []*ast.Assignment
	var redir redirState
	var name *ast.Word
	var args []ast.Word
	background := false

	for {
		prevPos := p.pos
		tok := p.peek()

		switch {
		case tok.Kind == token.EOF:
			goto done
		case p.isAssignmentLookahead() && name == nil:
			a, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			assignments = append(assignments, a)
		case tok.Kind == token.AMPERSAND:
			p.advance()
			background = true
		case isRedirection(tok):
			if err := p.parseRedirectionInto(&redir); err != nil {
				return nil, err
			}
		case tok.Kind == token.VAR:
			p.advance()
			if name == nil {
				return &ast.VarRef{Name: tok.Lexeme}, nil
			}
			args = append(args, ast.Word{Kind: ast.WordVar, Text: tok.Lexeme})
		case isCommandStart(tok) && name == nil:
			p.advance()
			w := ast.Word{Kind: wordKindFor(tok.Kind), Text: tok.Lexeme}
			name = &w
		case isCommandStart(tok) && name != nil:
			p.advance()
			args = append(args, ast.Word{Kind: wordKindFor(tok.Kind), Text: tok.Lexeme})
		default:
			goto done
		}

		invariant.Invariant(p.pos > prevPos, "parser command loop must make progress")
	}

done:
	for isRedirection(p.peek()) {
		if err := p.parseRedirectionInto(&redir); err != nil {
			return nil, err
		}
	}

	if name == nil && len(assignments) > 0 && redir.empty() {
		if len(assignments) == 1 {
			return assignments[0], nil
		}
		return &ast.AssignmentList{Assignments: assignments}, nil
	}

	if name == nil && len(assignments) == 0 && redir.empty() && !background {
		return nil, nil
	}

	if name == nil {
		return nil, p.syntaxErrorf("expected a command name")
	}

	return &ast.Command{
		Name:         *name,
		Args:         args,
		Stdin:        redir.stdin,
		Stdout:       redir.stdout,
		StdoutAppend: redir.stdoutAppend,
		Stderr:       redir.stderr,
		StderrAppend: redir.stderrAppend,
		Assignments:  assignments,
		Background:   background,
	}, nil
}

// parseIf implements `if '(' expr ')' '->' block (elif '(' expr ')'
// '->' block)* (else '->' block)?`. The leading "if"/"elif" word has
// already been consumed by the caller.
func (p *Parser) parseIf() (ast.Node, error) {
	if _, err := p.expect(token.LPAREN, "expected '(' after if/elif"); err != nil {
		return nil, err
	}
	condition, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN, "expected ')' after condition"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ARROW, "expected '->' after condition"); err != nil {
		return nil, err
	}
	consequent, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	p.consumeSeparators()

	var alternative ast.Node
	tok := p.peek()
	if tok.Kind == token.WORD && tok.Lexeme == "elif" {
		p.advance()
		alternative, err = p.parseIf()
		if err != nil {
			return nil, err
		}
	} else if tok.Kind == token.WORD && tok.Lexeme == "else" {
		p.advance()
		if _, err := p.expect(token.ARROW, "expected '->' after else"); err != nil {
			return nil, err
		}
		alternative, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return &ast.If{Condition: condition, Consequent: consequent, Alternative: alternative}, nil
}

// parseExpression implements the operator loop available inside an if
// condition: comparison, logical, and pipe operators over parsePrimary
// operands, with parentheses grouping subexpressions.
func (p *Parser) parseExpression() (ast.Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		switch op.Kind {
		case token.GT, token.LT, token.EQ_EQ, token.NOT_EQ, token.GT_EQ, token.LT_EQ, token.AND, token.OR, token.PIPE:
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op.Lexeme, Left: left, Right: right}
	}
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	tok := p.peek()
	switch {
	case tok.Kind == token.LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN, "expected ')' to close sub-expression"); err != nil {
			return nil, err
		}
		return expr, nil
	case tok.Kind == token.WORD || tok.Kind == token.STRING || tok.Kind == token.DSTRING || tok.Kind == token.VAR:
		return p.parseSequence()
	default:
		return nil, p.syntaxErrorf("unexpected token")
	}
}

// parseBlock implements `'{' (statement (NEWLINE|';'))* '}'`.
func (p *Parser) parseBlock() (ast.Node, error) {
	if _, err := p.expect(token.LBRACE, "expected '{' to start a block"); err != nil {
		return nil, err
	}
	p.consumeSeparators()

	var statements []ast.Node
	for p.peek().Kind != token.RBRACE && p.peek().Kind != token.EOF {
		node, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		if node != nil {
			statements = append(statements, node)
		}
		p.consumeSeparators()
	}
	if _, err := p.expect(token.RBRACE, "expected '}' to close a block"); err != nil {
		return nil, err
	}
	return &ast.Block{Statements: statements}, nil
}
