package index

import (
	"strings"

	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Match evaluates expr against a document and its extracted elements. A
// nil expression matches everything.
func Match(expr Expr, doc *models.Document, elements []models.Element) bool {
	switch e := expr.(type) {
	case nil:
		return true
	case And:
		for _, t := range e {
			if !Match(t, doc, elements) {
				return false
			}
		}
		return true
	case Or:
		for _, t := range e {
			if Match(t, doc, elements) {
				return true
			}
		}
		return false
	case Text:
		return matchText(e.Value, doc, elements)
	case Comparison:
		for i := range elements {
			if matchElement(e, &elements[i]) {
				return true
			}
		}
		return false
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func matchText(text string, doc *models.Document, elements []models.Element) bool {
	if containsFold(doc.ID, text) || containsFold(doc.IDShort, text) || containsFold(doc.AssetID, text) {
		return true
	}
	for _, el := range elements {
		if el.StringValue != nil && containsFold(*el.StringValue, text) {
			return true
		}
	}
	return false
}

func matchElement(c Comparison, el *models.Element) bool {
	if el.ModelType != c.ModelType {
		return false
	}
	if c.IDShort != "" && !strings.EqualFold(el.IDShort, c.IDShort) {
		return false
	}
	if c.Value == nil {
		return true
	}

	v := c.Value
	switch v.Kind {
	case KindString:
		if el.StringValue == nil {
			return false
		}
		if c.Op == OpContains {
			return containsFold(*el.StringValue, v.String)
		}
		return compareOp(c.Op, strings.Compare(strings.ToLower(*el.StringValue), strings.ToLower(v.String)))
	case KindNumber:
		switch {
		case el.NumberValue != nil:
			return compareOp(c.Op, cmpFloat(*el.NumberValue, v.Number))
		case el.BigintValue != nil:
			return compareOp(c.Op, cmpFloat(float64(*el.BigintValue), v.Number))
		}
	case KindBigint:
		switch {
		case el.BigintValue != nil:
			return compareOp(c.Op, cmpInt(*el.BigintValue, v.Bigint))
		case el.NumberValue != nil:
			return compareOp(c.Op, cmpFloat(*el.NumberValue, float64(v.Bigint)))
		}
	case KindBoolean:
		if el.BooleanValue != nil {
			switch c.Op {
			case OpEq:
				return *el.BooleanValue == v.Boolean
			case OpNe:
				return *el.BooleanValue != v.Boolean
			}
		}
	case KindDate:
		if el.DateValue != nil {
			return compareOp(c.Op, el.DateValue.Compare(v.Date))
		}
	}
	return false
}

func compareOp(op Operator, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
