package index

import (
	"testing"

	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/stretchr/testify/assert"
)

func docs(ids ...string) []*models.Document {
	out := make([]*models.Document, len(ids))
	for i, id := range ids {
		out[i] = &models.Document{Endpoint: "E1", ID: id}
	}
	return out
}

func ids(p *models.Page) []string {
	out := make([]string, 0, len(p.Documents))
	for _, d := range p.Documents {
		out = append(out, d.ID)
	}
	return out
}

func key(id string) *models.DocumentKey {
	return &models.DocumentKey{Endpoint: "E1", ID: id}
}

func TestAssemblePage(t *testing.T) {
	tests := []struct {
		name     string
		cursor   models.Cursor
		matches  []*models.Document
		want     []string
		previous *models.DocumentKey
		next     *models.DocumentKey
	}{
		{"first with more", models.FirstPage(2), docs("a", "b", "c"), []string{"a", "b"}, nil, key("b")},
		{"first only", models.FirstPage(2), docs("a", "b"), []string{"a", "b"}, nil, nil},
		{"first empty", models.FirstPage(2), nil, []string{}, nil, nil},
		{"next tail", models.NextPage(*key("b"), 2), docs("c"), []string{"c"}, key("c"), nil},
		{"next middle", models.NextPage(*key("a"), 1), docs("b", "c"), []string{"b"}, key("b"), key("b")},
		{"next empty", models.NextPage(*key("z"), 2), nil, []string{}, key("z"), nil},
		{"last with more", models.LastPage(2), docs("c", "b", "a"), []string{"b", "c"}, key("b"), nil},
		{"last only", models.LastPage(5), docs("c", "b", "a"), []string{"a", "b", "c"}, nil, nil},
		{"previous head", models.PreviousPage(*key("c"), 2), docs("b", "a"), []string{"a", "b"}, nil, key("b")},
		{"previous middle", models.PreviousPage(*key("d"), 2), docs("c", "b", "a"), []string{"b", "c"}, key("b"), key("c")},
		{"previous empty", models.PreviousPage(*key("a"), 2), nil, []string{}, nil, key("a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := AssemblePage(tt.cursor, tt.matches)
			assert.Equal(t, tt.want, ids(p))
			assert.Equal(t, tt.previous, p.Previous)
			assert.Equal(t, tt.next, p.Next)
		})
	}
}

func TestAssemblePage_DoesNotMutateMatches(t *testing.T) {
	m := docs("c", "b", "a")
	AssemblePage(models.LastPage(2), m)
	assert.Equal(t, "c", m[0].ID)
}
