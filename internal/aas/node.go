// Package aas holds the opaque Asset Administration Shell tree the index
// works with. Only what indexing needs is modelled: identity, a typed
// leaf value and children. Everything else in an AAS file is ignored.
package aas

import (
	"encoding/json"
	"hash/crc32"
	"strings"
)

// Model types with special handling.
const (
	ModelEnvironment           = "Environment"
	ModelShell                 = "AssetAdministrationShell"
	ModelSubmodel              = "Submodel"
	ModelProperty              = "Property"
	ModelMultiLanguageProperty = "MultiLanguageProperty"
	ModelFile                  = "File"
	ModelBlob                  = "Blob"
	ModelRange                 = "Range"
)

// LangString is one localized text of a MultiLanguageProperty.
type LangString struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// Node is one element of an AAS environment tree.
type Node struct {
	ModelType     string       `json:"modelType"`
	ID            string       `json:"id,omitempty"`
	IDShort       string       `json:"idShort,omitempty"`
	ValueType     string       `json:"valueType,omitempty"`
	Value         string       `json:"value,omitempty"`
	LangStrings   []LangString `json:"langStrings,omitempty"`
	GlobalAssetID string       `json:"globalAssetId,omitempty"`
	Thumbnail     string       `json:"thumbnail,omitempty"`
	Children      []*Node      `json:"children,omitempty"`
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(node *Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Shells returns the shells directly below an environment root.
func (n *Node) Shells() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.ModelType == ModelShell {
			out = append(out, c)
		}
	}
	return out
}

// FirstShell returns the first shell of an environment, or nil.
func (n *Node) FirstShell() *Node {
	if n == nil {
		return nil
	}
	if n.ModelType == ModelShell {
		return n
	}
	for _, c := range n.Children {
		if c.ModelType == ModelShell {
			return c
		}
	}
	return nil
}

// Text returns the text for language, falling back to the first entry.
func (n *Node) Text(language string) string {
	if len(n.LangStrings) == 0 {
		return n.Value
	}
	for _, ls := range n.LangStrings {
		if strings.EqualFold(ls.Language, language) {
			return ls.Text
		}
	}
	return n.LangStrings[0].Text
}

// Checksum returns the CRC32 (IEEE) of the tree's canonical JSON encoding.
func Checksum(n *Node) uint32 {
	if n == nil {
		return 0
	}
	b, err := json.Marshal(n)
	if err != nil {
		return 0
	}
	return crc32.ChecksumIEEE(b)
}

var abbreviations = map[string]string{
	"assetadministrationshell":     "AAS",
	"submodel":                     "SM",
	"property":                     "Prop",
	"multilanguageproperty":        "MLP",
	"submodelelementcollection":    "SMC",
	"submodelelementlist":          "SML",
	"file":                         "File",
	"blob":                         "Blob",
	"range":                        "Range",
	"referenceelement":             "Ref",
	"relationshipelement":          "Rel",
	"annotatedrelationshipelement": "ARel",
	"entity":                       "Ent",
	"operation":                    "Op",
	"capability":                   "Cap",
	"basiceventelement":            "Evt",
}

// AbbreviationOf returns the short model-type name stored in the index.
// Abbreviations are accepted as input too; unknown types are returned as is.
func AbbreviationOf(modelType string) string {
	key := strings.ToLower(modelType)
	if abbr, ok := abbreviations[key]; ok {
		return abbr
	}
	for _, abbr := range abbreviations {
		if strings.EqualFold(abbr, modelType) {
			return abbr
		}
	}
	return modelType
}
