package sqlindex

import (
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/aasindex/internal/dbx"
	"github.com/dmitrijs2005/aasindex/internal/index"
)

// filter compiles expressions for one dialect. lower folds literals the way
// the database's LOWER folds column values.
type filter struct {
	lower func(string) string
}

// filterFor returns the compiler of dialect. SQLite's LOWER folds ASCII
// only, so case-insensitive matching of other letters is exact there.
func filterFor(dialect dbx.Dialect) filter {
	if dialect == dbx.SQLite {
		return filter{lower: asciiLower}
	}
	return filter{lower: strings.ToLower}
}

func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r < utf8.RuneSelf && 'A' <= r && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}, s)
}

// compile turns an expression into a WHERE clause over documents d.
// Element predicates run as EXISTS subqueries so one matching element is
// enough and documents are never duplicated.
func (f filter) compile(expr index.Expr) (string, []any) {
	switch e := expr.(type) {
	case index.And:
		return f.compileTerms([]index.Expr(e), " AND ")
	case index.Or:
		return f.compileTerms([]index.Expr(e), " OR ")
	case index.Text:
		p := f.likePattern(e.Value)
		return `(LOWER(d.id) LIKE ? ESCAPE '\' OR LOWER(d.id_short) LIKE ? ESCAPE '\' OR LOWER(d.asset_id) LIKE ? ESCAPE '\'` +
				` OR EXISTS (SELECT 1 FROM elements e WHERE e.uuid = d.uuid AND LOWER(e.string_value) LIKE ? ESCAPE '\'))`,
			[]any{p, p, p, p}
	case index.Comparison:
		return f.compileComparison(e)
	}
	return "1 = 1", nil
}

func (f filter) compileTerms(terms []index.Expr, sep string) (string, []any) {
	parts := make([]string, 0, len(terms))
	var args []any
	for _, t := range terms {
		clause, a := f.compile(t)
		parts = append(parts, clause)
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, sep) + ")", args
}

func (f filter) compileComparison(c index.Comparison) (string, []any) {
	where := []string{"e.uuid = d.uuid", "e.model_type = ?"}
	args := []any{c.ModelType}
	if c.IDShort != "" {
		where = append(where, "LOWER(e.id_short) = ?")
		args = append(args, f.lower(c.IDShort))
	}

	if v := c.Value; v != nil {
		op := sqlOperator(c.Op)
		switch v.Kind {
		case index.KindString:
			if c.Op == index.OpContains {
				where = append(where, `LOWER(e.string_value) LIKE ? ESCAPE '\'`)
				args = append(args, f.likePattern(v.String))
			} else {
				where = append(where, "LOWER(e.string_value) "+op+" ?")
				args = append(args, f.lower(v.String))
			}
		case index.KindNumber:
			where = append(where, "(e.number_value "+op+" ? OR CAST(e.bigint_value AS DOUBLE PRECISION) "+op+" ?)")
			args = append(args, v.Number, v.Number)
		case index.KindBigint:
			where = append(where, "(e.bigint_value "+op+" ? OR e.number_value "+op+" ?)")
			args = append(args, v.Bigint, float64(v.Bigint))
		case index.KindBoolean:
			if c.Op != index.OpEq && c.Op != index.OpNe {
				return "1 = 0", nil
			}
			where = append(where, "e.boolean_value "+op+" ?")
			args = append(args, v.Boolean)
		case index.KindDate:
			where = append(where, "e.date_value "+op+" ?")
			args = append(args, v.Date.UnixNano())
		}
	}
	return "EXISTS (SELECT 1 FROM elements e WHERE " + strings.Join(where, " AND ") + ")", args
}

func sqlOperator(op index.Operator) string {
	switch op {
	case index.OpNe:
		return "<>"
	case index.OpLt, index.OpLe, index.OpGt, index.OpGe:
		return string(op)
	}
	return "="
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (f filter) likePattern(s string) string {
	return "%" + likeEscaper.Replace(f.lower(s)) + "%"
}
