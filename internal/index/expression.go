package index

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/keywords"
)

// Operator compares an element value with a literal.
type Operator string

const (
	OpEq       Operator = "="
	OpNe       Operator = "!="
	OpLt       Operator = "<"
	OpLe       Operator = "<="
	OpGt       Operator = ">"
	OpGe       Operator = ">="
	OpContains Operator = "~"
)

// Expr is a node of a parsed filter expression.
type Expr interface {
	String() string
}

// And matches when every term matches.
type And []Expr

// Or matches when any term matches.
type Or []Expr

// Text is a free-text term matched against document identity and string
// element values.
type Text struct {
	Value string
}

// Comparison matches documents having an element of ModelType (and
// IDShort, when set) whose value satisfies Op against Value. A nil Value
// only requires the element to exist.
type Comparison struct {
	ModelType string
	IDShort   string
	Op        Operator
	Value     *Literal
}

// Literal is a typed constant of a comparison.
type Literal struct {
	Kind    ValueKind
	String  string
	Number  float64
	Bigint  int64
	Boolean bool
	Date    time.Time
}

func (a And) String() string { return join([]Expr(a), " && ") }
func (o Or) String() string  { return join([]Expr(o), " || ") }
func (t Text) String() string {
	return strconv.Quote(t.Value)
}

func (c Comparison) String() string {
	s := "#" + c.ModelType
	if c.IDShort != "" {
		s += ":" + c.IDShort
	}
	if c.Value != nil {
		s += " " + string(c.Op) + " " + c.Value.text()
	}
	return s
}

func (l *Literal) text() string {
	switch l.Kind {
	case KindNumber:
		return strconv.FormatFloat(l.Number, 'g', -1, 64)
	case KindBigint:
		return strconv.FormatInt(l.Bigint, 10) + "n"
	case KindBoolean:
		return strconv.FormatBool(l.Boolean)
	case KindDate:
		return l.Date.Format(time.RFC3339)
	}
	return strconv.Quote(l.String)
}

func join(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Compile parses a filter expression and normalizes long string literals
// through the keyword directory so they compare like indexed values.
// Expressions shorter than common.MinExpressionLength yield a nil Expr.
func Compile(text, language string, dir *keywords.Directory) (Expr, error) {
	text = strings.TrimSpace(text)
	if len(text) < common.MinExpressionLength {
		return nil, nil
	}
	expr, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return normalize(expr, language, dir), nil
}

func normalize(e Expr, language string, dir *keywords.Directory) Expr {
	switch t := e.(type) {
	case And:
		out := make(And, len(t))
		for i, term := range t {
			out[i] = normalize(term, language, dir)
		}
		return out
	case Or:
		out := make(Or, len(t))
		for i, term := range t {
			out[i] = normalize(term, language, dir)
		}
		return out
	case Comparison:
		if t.Value != nil && t.Value.Kind == KindString && t.Op != OpContains {
			v := *t.Value
			v.String = dir.Digest(v.String, language, false)
			t.Value = &v
		}
		return t
	}
	return e
}

// Parse parses a filter expression:
//
//	expr       := and ( "||" and )*
//	and        := primary ( "&&" primary )*
//	primary    := "(" expr ")" | comparison | text
//	comparison := "#" modelType [ ":" idShort ] [ op literal ]
//
// Literals are quoted strings, numbers, bigints ("42n"), true/false and
// dates (2006-01-02 or RFC 3339). Bare words form free-text terms.
func Parse(text string) (Expr, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return expr, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuoted
	tokRef
	tokOp
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var refPattern = regexp.MustCompile(`^#([A-Za-z][A-Za-z0-9_]*)(?::([A-Za-z0-9_\-.]+))?`)

const delimiters = "()=<>!~&|\"'"

func lex(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		r, width := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			i += width
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case strings.HasPrefix(s[i:], "&&"):
			toks = append(toks, token{tokAnd, "&&", i})
			i += 2
		case strings.HasPrefix(s[i:], "||"):
			toks = append(toks, token{tokOr, "||", i})
			i += 2
		case strings.HasPrefix(s[i:], "=="):
			toks = append(toks, token{tokOp, "=", i})
			i += 2
		case strings.HasPrefix(s[i:], "!="), strings.HasPrefix(s[i:], "<="), strings.HasPrefix(s[i:], ">="):
			toks = append(toks, token{tokOp, s[i : i+2], i})
			i += 2
		case c == '=' || c == '<' || c == '>' || c == '~':
			toks = append(toks, token{tokOp, string(c), i})
			i++
		case c == '"' || c == '\'':
			j := i + 1
			var b strings.Builder
			for ; j < len(s) && s[j] != c; j++ {
				if s[j] == '\\' && j+1 < len(s) {
					j++
				}
				b.WriteByte(s[j])
			}
			if j >= len(s) {
				return nil, fmt.Errorf("%w: unterminated string at %d", common.ErrInvalidExpression, i)
			}
			toks = append(toks, token{tokQuoted, b.String(), i})
			i = j + 1
		case c == '#':
			m := refPattern.FindStringSubmatch(s[i:])
			if m == nil {
				return nil, fmt.Errorf("%w: bad element reference at %d", common.ErrInvalidExpression, i)
			}
			toks = append(toks, token{tokRef, m[0], i})
			i += len(m[0])
		default:
			j := i
			for j < len(s) {
				r, w := utf8.DecodeRuneInString(s[j:])
				if unicode.IsSpace(r) || (r < utf8.RuneSelf && strings.ContainsRune(delimiters, r)) {
					break
				}
				j += w
			}
			if j == i {
				return nil, fmt.Errorf("%w: unexpected %q at %d", common.ErrInvalidExpression, c, i)
			}
			toks = append(toks, token{tokWord, s[i:j], i})
			i = j
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool  { return p.pos >= len(p.toks) }
func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) is(k tokenKind) bool {
	return !p.done() && p.peek().kind == k
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidExpression, fmt.Sprintf(format, args...))
}

func (p *parser) parseOr() (Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.is(tokOr) {
		p.next()
		t, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return Or(terms), nil
}

func (p *parser) parseAnd() (Expr, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.is(tokAnd) {
		p.next()
		t, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return And(terms), nil
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.done() {
		return nil, p.errorf("unexpected end of expression")
	}
	switch p.peek().kind {
	case tokLParen:
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.is(tokRParen) {
			return nil, p.errorf("missing ')'")
		}
		p.next()
		return e, nil
	case tokRef:
		return p.parseComparison()
	case tokWord, tokQuoted:
		var words []string
		for p.is(tokWord) || p.is(tokQuoted) {
			words = append(words, p.next().text)
		}
		return Text{Value: strings.Join(words, " ")}, nil
	}
	return nil, p.errorf("unexpected %q", p.peek().text)
}

func (p *parser) parseComparison() (Expr, error) {
	m := refPattern.FindStringSubmatch(p.next().text)
	c := Comparison{ModelType: aas.AbbreviationOf(m[1]), IDShort: m[2]}
	if !p.is(tokOp) {
		return c, nil
	}
	c.Op = Operator(p.next().text)
	if p.done() || (p.peek().kind != tokWord && p.peek().kind != tokQuoted) {
		return nil, p.errorf("missing value after %s", c.Op)
	}
	lit := p.next()
	if lit.kind == tokQuoted {
		c.Value = &Literal{Kind: KindString, String: lit.text}
	} else {
		c.Value = parseLiteral(lit.text)
	}
	if c.Op == OpContains && c.Value.Kind != KindString {
		c.Value = &Literal{Kind: KindString, String: lit.text}
	}
	return c, nil
}

var bigintPattern = regexp.MustCompile(`^-?\d+n$`)

func parseLiteral(s string) *Literal {
	switch strings.ToLower(s) {
	case "true":
		return &Literal{Kind: KindBoolean, Boolean: true}
	case "false":
		return &Literal{Kind: KindBoolean, Boolean: false}
	}
	if bigintPattern.MatchString(s) {
		if i, err := strconv.ParseInt(strings.TrimSuffix(s, "n"), 10, 64); err == nil {
			return &Literal{Kind: KindBigint, Bigint: i}
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return &Literal{Kind: KindNumber, Number: f}
	}
	if d := ToDateValue(s); d != nil {
		return &Literal{Kind: KindDate, Date: *d}
	}
	return &Literal{Kind: KindString, String: s}
}
