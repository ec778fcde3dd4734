package index

import (
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/keywords"
)

// ValueKind is the typed slot an element value is stored in.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindString
	KindNumber
	KindDate
	KindBoolean
	KindBigint
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBoolean:
		return "boolean"
	case KindBigint:
		return "bigint"
	}
	return "none"
}

// KindOf maps an XSD value type to its slot. Properties without a value
// type are treated as strings.
func KindOf(valueType string) ValueKind {
	switch strings.TrimPrefix(strings.ToLower(valueType), "xs:") {
	case "", "string", "anyuri", "normalizedstring", "token", "language", "hexbinary", "base64binary", "duration":
		return KindString
	case "int", "short", "byte", "unsignedint", "unsignedshort", "unsignedbyte", "double", "float", "decimal":
		return KindNumber
	case "long", "integer", "unsignedlong", "positiveinteger", "negativeinteger", "nonnegativeinteger", "nonpositiveinteger":
		return KindBigint
	case "boolean":
		return KindBoolean
	case "date", "datetime", "datetimestamp":
		return KindDate
	}
	return KindString
}

// ToStringValue returns the indexed form of a string value, reduced by the
// keyword directory when long.
func ToStringValue(value string, dir *keywords.Directory, language string, localized bool) *string {
	s := dir.Digest(value, language, localized)
	return &s
}

// ToNumberValue parses a numeric value. Zero is a value like any other.
func ToNumberValue(value string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil
	}
	return &f
}

// ToBigintValue parses an integer value.
func ToBigintValue(value string) *int64 {
	i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return nil
	}
	return &i
}

// ToBooleanValue parses "true"/"false"/"1"/"0". False is a value like any other.
func ToBooleanValue(value string) *bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &b
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02Z07:00", "2006-01-02"}

// ToDateValue parses xs:date and xs:dateTime values, normalized to UTC.
func ToDateValue(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
