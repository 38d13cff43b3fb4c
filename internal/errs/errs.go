// Package errs collects the error taxonomy shared by the lexer, parser,
// expander, and executor stages (see the core's error handling design).
// LexError and SyntaxError carry the source position the problem was
// detected at so a caller can print a one-line diagnostic without
// re-deriving it; the other types carry no position.
package errs

import (
	"fmt"

	"github.com/rayshell/rayshell/internal/token"
)

// LexReason enumerates the ways the lexer can reject input.
type LexReason string

const (
	UnterminatedQuote LexReason = "unterminated quote"
	EmptyVarName      LexReason = "empty variable name"
	UnclosedVarBrace  LexReason = "unclosed variable brace"
)

// LexError is raised by the lexer on malformed input.
type LexError struct {
	Reason   LexReason
	Position token.Position
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Position, e.Reason)
}

// SyntaxError is raised by the parser when the token stream does not
// match the grammar.
type SyntaxError struct {
	Message  string
	Position token.Position
	Got      token.Kind
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s (got %s)", e.Position, e.Message, e.Got)
}

// AmbiguousRedirectError is raised by the expander when a redirection
// target expands to anything other than exactly one field.
type AmbiguousRedirectError struct {
	Target string
}

func (e *AmbiguousRedirectError) Error() string {
	return fmt.Sprintf("ambiguous redirect: %q", e.Target)
}

// NotImplementedError marks a grammar production whose AST node exists
// but whose parser/executor support does not yet exist (for, while,
// case).
type NotImplementedError struct {
	Keyword string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s: not implemented", e.Keyword)
}

// JobControlError wraps a parent-side system call failure (setpgid,
// tcsetpgrp, waitpid) that must be logged but never aborts the shell.
type JobControlError struct {
	Op    string
	Cause error
}

func (e *JobControlError) Error() string {
	return fmt.Sprintf("job control: %s: %v", e.Op, e.Cause)
}

func (e *JobControlError) Unwrap() error {
	return e.Cause
}
