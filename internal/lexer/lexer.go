// Package lexer scans rayshell source text into a token stream. It is a
// single-pass, character-driven scanner in the style of the teacher's
// runtime/lexer: a small readChar/peekChar core, ASCII-oriented
// classification, and maximal munch over a fixed operator table tried
// longest-match-first.
package lexer

import (
	"log/slog"
	"os"
	"unicode"

	"github.com/rayshell/rayshell/internal/errs"
	"github.com/rayshell/rayshell/internal/token"
)

var threeCharOps = map[string]token.Kind{
	"2>>": token.APPEND_ERR,
	"<<<": token.HERE_STRING,
}

var twoCharOps = map[string]token.Kind{
	"2>": token.REDIR_ERR,
	">>": token.APPEND_OUT,
	"<<": token.HERE_DOC,
	"&&": token.AND,
	"||": token.OR,
	"->": token.ARROW,
	">=": token.GT_EQ,
	"<=": token.LT_EQ,
	"==": token.EQ_EQ,
	"!=": token.NOT_EQ,
}

var oneCharOps = map[rune]token.Kind{
	';':  token.SEMICOLON,
	'=':  token.EQ,
	'|':  token.PIPE,
	'&':  token.AMPERSAND,
	'>':  token.GT,
	'<':  token.LT,
	'{':  token.LBRACE,
	'}':  token.RBRACE,
	'(':  token.LPAREN,
	')':  token.RPAREN,
}

// Lexer scans one complete source string into tokens. It holds no
// reference to the parser and produces no AST; tokens outlive only the
// Tokenize call that reads them.
type Lexer struct {
	src []rune
	pos int // index of the next unread rune

	line, col int // position of the next unread rune

	logger *slog.Logger
}

// New creates a Lexer over src. Debug tracing is enabled by setting
// RAYSHELL_DEBUG, mirroring the teacher's DEVCMD_DEBUG_LEXER convention.
func New(src string) *Lexer {
	level := slog.LevelInfo
	if os.Getenv("RAYSHELL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return &Lexer{src: []rune(src), line: 1, col: 1, logger: logger}
}

// Tokenize scans the entire source and returns the resulting token
// stream, always terminated by a single EOF token. It returns the first
// error encountered (UnterminatedQuote, EmptyVarName, or an unclosed
// variable brace) and stops scanning at that point.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var tokens []token.Token
	var buf []rune
	bufPos := l.position()

	flush := func() {
		if len(buf) > 0 {
			tokens = append(tokens, token.Token{Kind: token.WORD, Lexeme: string(buf), Position: bufPos})
			buf = nil
		}
	}

	for {
		startPos := l.position()
		ch, ok := l.readChar()
		if !ok {
			flush()
			tokens = append(tokens, token.Token{Kind: token.EOF, Position: startPos})
			l.logger.Debug("tokenize complete", "count", len(tokens))
			return tokens, nil
		}

		if ch == '#' && len(buf) == 0 {
			for {
				peeked, ok := l.peek(0)
				if !ok || peeked == '\n' {
					break
				}
				l.readChar()
			}
			continue
		}

		if unicode.IsSpace(ch) {
			flush()
			if ch == '\n' {
				tokens = append(tokens, token.Token{Kind: token.NEWLINE, Position: startPos})
			}
			bufPos = l.position()
			continue
		}

		if ch == '\'' || ch == '"' {
			flush()
			text, err := l.scanQuoted(ch)
			if err != nil {
				return nil, err
			}
			kind := token.STRING
			if ch == '"' {
				kind = token.DSTRING
			}
			tokens = append(tokens, token.Token{Kind: kind, Lexeme: text, Position: startPos})
			bufPos = l.position()
			continue
		}

		if ch == '@' || ch == '$' {
			flush()
			name, err := l.scanVarName(startPos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token.Token{Kind: token.VAR, Lexeme: name, Position: startPos})
			bufPos = l.position()
			continue
		}

		if kind, text, ok := l.matchOperator(ch); ok {
			flush()
			tokens = append(tokens, token.Token{Kind: kind, Lexeme: text, Position: startPos})
			bufPos = l.position()
			continue
		}

		if len(buf) == 0 {
			bufPos = startPos
		}
		buf = append(buf, ch)
	}
}

// matchOperator tries a three-, then two-, then one-character match
// against the operator tables, starting at the already-consumed ch.
// On a match it consumes the remaining characters of the operator.
func (l *Lexer) matchOperator(ch rune) (token.Kind, string, bool) {
	p0, _ := l.peek(0)
	p1, _ := l.peek(1)
	three := string([]rune{ch, p0, p1})
	if kind, ok := threeCharOps[three]; ok {
		l.readChar()
		l.readChar()
		return kind, three, true
	}
	two := string([]rune{ch, p0})
	if kind, ok := twoCharOps[two]; ok {
		l.readChar()
		return kind, two, true
	}
	if kind, ok := oneCharOps[ch]; ok {
		return kind, string(ch), true
	}
	return 0, "", false
}

// scanQuoted consumes the body of a '...' or "..." literal, the opening
// quote already consumed. \x literalizes to x with no further meaning.
func (l *Lexer) scanQuoted(quote rune) (string, error) {
	var buf []rune
	for {
		ch, ok := l.readChar()
		if !ok {
			return "", &errs.LexError{Reason: errs.UnterminatedQuote, Position: l.position()}
		}
		if ch == quote {
			return string(buf), nil
		}
		if ch == '\\' {
			next, ok := l.readChar()
			if ok {
				buf = append(buf, next)
			}
			continue
		}
		buf = append(buf, ch)
	}
}

// scanVarName consumes a variable reference after the leading @ or $:
// either {arbitrary non-'}' text} or a bare identifier run.
func (l *Lexer) scanVarName(start token.Position) (string, error) {
	if p0, ok := l.peek(0); ok && p0 == '{' {
		l.readChar()
		var buf []rune
		for {
			ch, ok := l.readChar()
			if !ok {
				return "", &errs.LexError{Reason: errs.UnclosedVarBrace, Position: start}
			}
			if ch == '}' {
				break
			}
			buf = append(buf, ch)
		}
		if len(buf) == 0 {
			return "", &errs.LexError{Reason: errs.EmptyVarName, Position: start}
		}
		return string(buf), nil
	}

	var buf []rune
	for {
		p, ok := l.peek(0)
		if !ok || !(unicode.IsLetter(p) || unicode.IsDigit(p) || p == '_') {
			break
		}
		ch, _ := l.readChar()
		buf = append(buf, ch)
	}
	if len(buf) == 0 {
		return "", &errs.LexError{Reason: errs.EmptyVarName, Position: start}
	}
	return string(buf), nil
}

func (l *Lexer) position() token.Position {
	return token.Position{Line: l.line, Column: l.col}
}

// readChar consumes and returns the next rune, advancing line/column.
func (l *Lexer) readChar() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	ch := l.src[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch, true
}

// peek looks ahead offset runes without consuming anything.
func (l *Lexer) peek(offset int) (rune, bool) {
	idx := l.pos + offset
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}
