package index

import (
	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/keywords"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// BuildElements traverses a document's content and returns one element
// per indexable node. Multi-language properties yield one element per
// language. The environment root itself is not indexed.
func BuildElements(doc *models.Document, dir *keywords.Directory) []models.Element {
	if doc == nil || doc.Content == nil {
		return nil
	}

	var out []models.Element
	doc.Content.Walk(func(n *aas.Node) bool {
		if n.ModelType == aas.ModelEnvironment || n.ModelType == "" {
			return true
		}

		base := models.Element{
			ModelType: aas.AbbreviationOf(n.ModelType),
			ID:        n.ID,
			IDShort:   n.IDShort,
		}

		switch n.ModelType {
		case aas.ModelMultiLanguageProperty:
			if len(n.LangStrings) == 0 {
				out = append(out, base)
				return true
			}
			for _, ls := range n.LangStrings {
				e := base
				e.StringValue = ToStringValue(ls.Text, dir, ls.Language, true)
				out = append(out, e)
			}
			return true
		case aas.ModelProperty:
			setValue(&base, n.ValueType, n.Value, dir)
		case aas.ModelFile, aas.ModelBlob:
			if n.Value != "" {
				base.StringValue = ToStringValue(n.Value, dir, "", false)
			}
		}
		out = append(out, base)
		return true
	})
	return out
}

// setValue fills the slot chosen by valueType. Unparseable values leave
// the element without a value; zero and false are kept.
func setValue(e *models.Element, valueType, value string, dir *keywords.Directory) {
	kind := KindOf(valueType)
	if value == "" && kind != KindString {
		return
	}
	switch kind {
	case KindString:
		if value != "" {
			e.StringValue = ToStringValue(value, dir, "", false)
		}
	case KindNumber:
		e.NumberValue = ToNumberValue(value)
	case KindBigint:
		e.BigintValue = ToBigintValue(value)
	case KindBoolean:
		e.BooleanValue = ToBooleanValue(value)
	case KindDate:
		e.DateValue = ToDateValue(value)
	}
}
