package aas

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedFormat is returned for content the parser cannot read.
var ErrUnsupportedFormat = errors.New("unsupported AAS format")

// ParseEnvironment decodes an AAS JSON environment (V3, with V2 identity
// fields tolerated) into a tree rooted at an Environment node.
func ParseEnvironment(data []byte) (*Node, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	root := &Node{ModelType: ModelEnvironment}
	for _, s := range objects(raw["assetAdministrationShells"]) {
		n := convert(s)
		if n.ModelType == "" {
			n.ModelType = ModelShell
		}
		root.Children = append(root.Children, n)
	}
	for _, s := range objects(raw["submodels"]) {
		n := convert(s)
		if n.ModelType == "" {
			n.ModelType = ModelSubmodel
		}
		root.Children = append(root.Children, n)
	}
	if len(root.Children) == 0 {
		return nil, fmt.Errorf("%w: no shells or submodels", ErrUnsupportedFormat)
	}
	return root, nil
}

// ParseElement decodes a single shell or submodel object, as returned by
// the AAS HTTP API.
func ParseElement(data []byte) (*Node, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return convert(raw), nil
}

func convert(m map[string]any) *Node {
	n := &Node{
		ModelType: modelType(m["modelType"]),
		ID:        identity(m),
		IDShort:   str(m["idShort"]),
		ValueType: str(m["valueType"]),
	}

	if info, ok := m["assetInformation"].(map[string]any); ok {
		n.GlobalAssetID = str(info["globalAssetId"])
		if n.GlobalAssetID == "" {
			n.GlobalAssetID = keyValue(info["globalAssetId"])
		}
		if thumb, ok := info["defaultThumbnail"].(map[string]any); ok {
			n.Thumbnail = str(thumb["path"])
		}
	}

	switch v := m["value"].(type) {
	case string:
		n.Value = v
	case float64:
		n.Value = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		n.Value = strconv.FormatBool(v)
	case []any:
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if _, isElem := obj["modelType"]; isElem {
				n.Children = append(n.Children, convert(obj))
				continue
			}
			if lang, ok := obj["language"]; ok {
				n.LangStrings = append(n.LangStrings, LangString{Language: str(lang), Text: str(obj["text"])})
			}
		}
	}

	for _, key := range []string{"submodelElements", "statements", "annotations"} {
		for _, obj := range objects(m[key]) {
			n.Children = append(n.Children, convert(obj))
		}
	}
	return n
}

func modelType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return str(t["name"])
	}
	return ""
}

func identity(m map[string]any) string {
	if id := str(m["id"]); id != "" {
		return id
	}
	if ident, ok := m["identification"].(map[string]any); ok {
		return str(ident["id"])
	}
	return ""
}

// keyValue reads V2-style references {"keys":[{"value":...}]}.
func keyValue(v any) string {
	ref, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	keys := objects(ref["keys"])
	if len(keys) == 0 {
		return ""
	}
	return str(keys[0]["value"])
}

func objects(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
