// Package expander resolves the parser's pre-expansion Words into the
// plain strings the executor runs. It is a single recursive walk over
// the AST that rewrites every Word to ast.WordLiteral, following the
// stage boundary documented on ast.Word.
package expander

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rayshell/rayshell/internal/ast"
	"github.com/rayshell/rayshell/internal/errs"
)

// Environment is the subset of process environment access the expander
// needs. A real run wires OSEnviron; tests wire a map.
type Environment interface {
	Getenv(name string) string
}

// StatusSource supplies the exit status @? resolves to. The executor
// implements this over its own last-status field.
type StatusSource interface {
	LastStatus() int
}

// OSEnviron is the production Environment, backed by os.Getenv.
type OSEnviron struct{}

func (OSEnviron) Getenv(name string) string { return os.Getenv(name) }

// Expander carries the environment and status lookups needed to turn a
// parsed Word into a resolved one. It holds no AST state between calls.
type Expander struct {
	Env    Environment
	Status StatusSource
}

// New builds an Expander over the given environment and status source.
func New(env Environment, status StatusSource) *Expander {
	return &Expander{Env: env, Status: status}
}

// Expand rewrites node and everything beneath it, producing a tree whose
// Words are all ast.WordLiteral. A nil node expands to nil.
func (e *Expander) Expand(node ast.Node) (ast.Node, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case *ast.Command:
		return e.expandCommand(n)
	case *ast.Pipeline:
		cmds := make([]*ast.Command, len(n.Commands))
		for i, c := range n.Commands {
			ec, err := e.expandCommand(c)
			if err != nil {
				return nil, err
			}
			cmds[i] = ec
		}
		return &ast.Pipeline{Commands: cmds, Background: n.Background}, nil
	case *ast.BinaryOp:
		left, err := e.Expand(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.Expand(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Op: n.Op, Left: left, Right: right}, nil
	case *ast.Assignment:
		return e.expandAssignment(n)
	case *ast.AssignmentList:
		out := make([]*ast.Assignment, len(n.Assignments))
		for i, a := range n.Assignments {
			ea, err := e.expandAssignment(a)
			if err != nil {
				return nil, err
			}
			out[i] = ea
		}
		return &ast.AssignmentList{Assignments: out}, nil
	case *ast.VarRef:
		fields, err := e.expandVar(n.Name, nil)
		if err != nil {
			return nil, err
		}
		args := make([]ast.Word, len(fields))
		for i, f := range fields {
			args[i] = ast.Literal(f)
		}
		return &ast.Command{Name: ast.Literal("echo"), Args: args}, nil
	case *ast.If:
		cond, err := e.Expand(n.Condition)
		if err != nil {
			return nil, err
		}
		cons, err := e.Expand(n.Consequent)
		if err != nil {
			return nil, err
		}
		alt, err := e.Expand(n.Alternative)
		if err != nil {
			return nil, err
		}
		return &ast.If{Condition: cond, Consequent: cons, Alternative: alt}, nil
	case *ast.Block:
		out := make([]ast.Node, len(n.Statements))
		for i, s := range n.Statements {
			es, err := e.Expand(s)
			if err != nil {
				return nil, err
			}
			out[i] = es
		}
		return &ast.Block{Statements: out}, nil
	default:
		return node, nil
	}
}

func (e *Expander) expandCommand(c *ast.Command) (*ast.Command, error) {
	var args []ast.Word
	for _, a := range c.Args {
		fields, err := e.expandArg(a)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			args = append(args, ast.Literal(f))
		}
	}

	assignments := make([]*ast.Assignment, len(c.Assignments))
	for i, a := range c.Assignments {
		ea, err := e.expandAssignment(a)
		if err != nil {
			return nil, err
		}
		assignments[i] = ea
	}

	nameFields, err := e.expandArg(c.Name)
	if err != nil {
		return nil, err
	}
	name := ast.Literal("")
	if len(nameFields) > 0 {
		name = ast.Literal(nameFields[0])
	}

	stdin, err := e.expandRedir(c.Stdin)
	if err != nil {
		return nil, err
	}
	stdout, err := e.expandRedir(c.Stdout)
	if err != nil {
		return nil, err
	}
	stderr, err := e.expandRedir(c.Stderr)
	if err != nil {
		return nil, err
	}

	return &ast.Command{
		Name:         name,
		Args:         args,
		Stdin:        stdin,
		Stdout:       stdout,
		StdoutAppend: c.StdoutAppend,
		Stderr:       stderr,
		StderrAppend: c.StderrAppend,
		Assignments:  assignments,
		Background:   c.Background,
	}, nil
}

func (e *Expander) expandAssignment(a *ast.Assignment) (*ast.Assignment, error) {
	if a.Value == nil {
		return &ast.Assignment{Name: a.Name, Value: literalPtr("")}, nil
	}
	fields, err := e.expandWord(*a.Value, true)
	if err != nil {
		return nil, err
	}
	val := ""
	if len(fields) > 0 {
		val = fields[0]
	}
	return &ast.Assignment{Name: a.Name, Value: literalPtr(val)}, nil
}

func (e *Expander) expandArg(w ast.Word) ([]string, error) {
	if w.Kind == ast.WordVar {
		return e.expandVar(w.Text, nil)
	}
	return e.expandWord(w, false)
}

// expandRedir resolves a redirection target to exactly one field; more
// or fewer than one is a shell error, not a silent truncation.
func (e *Expander) expandRedir(w *ast.Word) (*ast.Word, error) {
	if w == nil {
		return nil, nil
	}
	fields, err := e.expandWord(*w, true)
	if err != nil {
		return nil, err
	}
	if len(fields) != 1 {
		return nil, &errs.AmbiguousRedirectError{Target: w.Text}
	}
	return literalPtr(fields[0]), nil
}

func (e *Expander) expandWord(w ast.Word, forAssignment bool) ([]string, error) {
	switch w.Kind {
	case ast.WordSingle:
		return []string{w.Text}, nil
	case ast.WordDouble:
		s, err := e.expandDString(w.Text)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	case ast.WordVar:
		return e.expandVar(w.Text, nil)
	default:
		s := w.Text
		if !forAssignment && strings.HasPrefix(s, "~") {
			return e.tildeExpand(s)
		}
		ifs := e.Env.Getenv("IFS")
		if ifs == "" {
			ifs = " \t\n"
		}
		parts := fieldSplit(s, ifs)
		var out []string
		for _, p := range parts {
			if strings.ContainsAny(p, "*?[") {
				matches, err := filepath.Glob(p)
				if err == nil && len(matches) > 0 {
					out = append(out, matches...)
				} else {
					out = append(out, p)
				}
			} else {
				out = append(out, p)
			}
		}
		return out, nil
	}
}

// expandVar resolves a bare variable reference, recursing into values
// that themselves start with '@' while guarding against a self-reference
// cycle via seen.
func (e *Expander) expandVar(name string, seen map[string]bool) ([]string, error) {
	if seen == nil {
		seen = make(map[string]bool)
	}
	if seen[name] {
		return []string{""}, nil
	}
	seen[name] = true

	switch name {
	case "?":
		return []string{strconv.Itoa(e.Status.LastStatus())}, nil
	case "$", "$$":
		return []string{strconv.Itoa(os.Getpid())}, nil
	}

	raw := e.Env.Getenv(name)
	if raw == "" {
		return []string{""}, nil
	}

	var parts []string
	for _, tok := range strings.Fields(raw) {
		if strings.HasPrefix(tok, "@") {
			sub, err := e.expandVar(tok[1:], seen)
			if err != nil {
				return nil, err
			}
			parts = append(parts, sub...)
		} else {
			sub, err := e.expandWord(ast.Word{Kind: ast.WordPlain, Text: tok}, false)
			if err != nil {
				return nil, err
			}
			parts = append(parts, sub...)
		}
	}
	return parts, nil
}

// expandDString interpolates @name / @{name} references inside a
// double-quoted literal without field-splitting or globbing the result.
func (e *Expander) expandDString(text string) (string, error) {
	var out strings.Builder
	runes := []rune(text)
	n := len(runes)
	i := 0
	for i < n {
		ch := runes[i]

		if ch == '\\' && i+1 < n {
			out.WriteRune(runes[i+1])
			i += 2
			continue
		}

		if ch == '@' {
			var name string
			if i+1 < n && runes[i+1] == '{' {
				j := i + 2
				for j < n && runes[j] != '}' {
					j++
				}
				if j < n {
					name = string(runes[i+2 : j])
					i = j + 1
				} else {
					out.WriteByte('@')
					i++
					continue
				}
			} else {
				j := i + 1
				for j < n && (isAlnum(runes[j]) || runes[j] == '_' || runes[j] == '?' || runes[j] == '$') {
					j++
				}
				name = string(runes[i+1 : j])
				i = j
			}

			if name == "" {
				out.WriteByte('@')
				continue
			}

			switch name {
			case "?":
				out.WriteString(strconv.Itoa(e.Status.LastStatus()))
			case "$", "$$":
				out.WriteString(strconv.Itoa(os.Getpid()))
			default:
				out.WriteString(e.Env.Getenv(name))
			}
			continue
		}

		out.WriteRune(ch)
		i++
	}
	return out.String(), nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func fieldSplit(s, ifs string) []string {
	var parts []string
	var buf strings.Builder
	for _, ch := range s {
		if strings.ContainsRune(ifs, ch) {
			if buf.Len() > 0 {
				parts = append(parts, buf.String())
				buf.Reset()
			}
		} else {
			buf.WriteRune(ch)
		}
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	if len(parts) == 0 {
		return []string{""}
	}
	return parts
}

func (e *Expander) tildeExpand(s string) ([]string, error) {
	if s == "~" || strings.HasPrefix(s, "~/") {
		home := e.Env.Getenv("HOME")
		if home == "" {
			if u, err := user.Current(); err == nil {
				home = u.HomeDir
			}
		}
		return []string{home + s[1:]}, nil
	}
	if strings.HasPrefix(s, "~") {
		rest := s[1:]
		name, suffix, found := strings.Cut(rest, "/")
		u, err := user.Lookup(name)
		if err != nil {
			return []string{s}, nil
		}
		if found {
			return []string{u.HomeDir + "/" + suffix}, nil
		}
		return []string{u.HomeDir}, nil
	}
	return []string{s}, nil
}

func literalPtr(s string) *ast.Word {
	w := ast.Literal(s)
	return &w
}
