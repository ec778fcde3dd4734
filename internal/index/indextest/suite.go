// Package indextest is a conformance suite run against every index.Index
// backend.
package indextest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty index. The suite closes it.
type Factory func(t *testing.T) index.Index

// Run executes the suite.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, idx index.Index)
	}{
		{"Endpoints", testEndpoints},
		{"FirstAndNextPage", testFirstAndNextPage},
		{"PaginationStable", testPaginationStable},
		{"CursorRoundTrip", testCursorRoundTrip},
		{"ChangesBetweenPages", testChangesBetweenPages},
		{"FilterAcrossPages", testFilterAcrossPages},
		{"FilterValues", testFilterValues},
		{"FilterNonASCII", testFilterNonASCII},
		{"RemoveEndpointCascades", testRemoveEndpointCascades},
		{"DocumentLifecycle", testDocumentLifecycle},
		{"FindByAssetID", testFindByAssetID},
		{"Pager", testPager},
		{"Clear", testClear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := open(t)
			t.Cleanup(func() { _ = idx.Close() })
			tt.fn(t, idx)
		})
	}
}

// Document builds a document whose content has one shell and a submodel
// with a double "Power" property.
func Document(endpoint, id string, power float64) *models.Document {
	content := &aas.Node{ModelType: aas.ModelEnvironment, Children: []*aas.Node{
		{ModelType: aas.ModelShell, ID: id, IDShort: "Shell_" + id, GlobalAssetID: "asset:" + id},
		{ModelType: aas.ModelSubmodel, ID: id + "/sm", IDShort: "Technical", Children: []*aas.Node{
			{ModelType: aas.ModelProperty, IDShort: "Power", ValueType: "xs:double", Value: strconv.FormatFloat(power, 'f', -1, 64)},
			{ModelType: aas.ModelProperty, IDShort: "Certified", ValueType: "xs:boolean", Value: "false"},
			{ModelType: aas.ModelProperty, IDShort: "City", Value: "Berlin"},
		}},
	}}
	return &models.Document{
		Endpoint:  endpoint,
		ID:        id,
		AssetID:   "asset:" + id,
		IDShort:   "Shell_" + id,
		Address:   "/" + id + ".aasx",
		CRC32:     aas.Checksum(content),
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Content:   content,
	}
}

func endpoint(name string) *models.Endpoint {
	return &models.Endpoint{Name: name, URL: "file:///data/" + name, Type: models.EndpointFileSystem}
}

func seed(t *testing.T, idx index.Index, endpoints []string, perEndpoint int) []models.DocumentKey {
	t.Helper()
	ctx := context.Background()
	var keys []models.DocumentKey
	for _, e := range endpoints {
		require.NoError(t, idx.AddEndpoint(ctx, endpoint(e)))
		for i := 0; i < perEndpoint; i++ {
			id := fmt.Sprintf("urn:doc:%02d", perEndpoint-1-i)
			require.NoError(t, idx.Add(ctx, Document(e, id, float64(i))))
			keys = append(keys, models.DocumentKey{Endpoint: e, ID: id})
		}
	}
	slices.SortFunc(keys, models.DocumentKey.Compare)
	return keys
}

func keysOf(docs []*models.Document) []models.DocumentKey {
	out := make([]models.DocumentKey, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Key())
	}
	return out
}

func walkForward(t *testing.T, idx index.Index, limit int, expression string) []models.DocumentKey {
	t.Helper()
	ctx := context.Background()
	var all []models.DocumentKey
	cursor := models.FirstPage(limit)
	for i := 0; ; i++ {
		require.Less(t, i, 1000, "pagination does not terminate")
		page, err := idx.Documents(ctx, cursor, expression, "")
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Documents), limit)
		all = append(all, keysOf(page.Documents)...)
		next, ok := page.NextCursor(limit)
		if !ok {
			return all
		}
		cursor = next
	}
}

func walkBackward(t *testing.T, idx index.Index, limit int, expression string) []models.DocumentKey {
	t.Helper()
	ctx := context.Background()
	var all []models.DocumentKey
	cursor := models.LastPage(limit)
	for i := 0; ; i++ {
		require.Less(t, i, 1000, "pagination does not terminate")
		page, err := idx.Documents(ctx, cursor, expression, "")
		require.NoError(t, err)
		all = append(keysOf(page.Documents), all...)
		prev, ok := page.PreviousCursor(limit)
		if !ok {
			return all
		}
		cursor = prev
	}
}

func testEndpoints(t *testing.T, idx index.Index) {
	ctx := context.Background()

	require.NoError(t, idx.AddEndpoint(ctx, endpoint("b")))
	require.NoError(t, idx.AddEndpoint(ctx, endpoint("a")))
	err := idx.AddEndpoint(ctx, endpoint("a"))
	assert.ErrorIs(t, err, common.ErrEndpointExists)

	n, err := idx.EndpointCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := idx.Endpoints(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)

	updated := endpoint("a")
	updated.URL = "file:///other"
	updated.Schedule = &models.Schedule{Type: models.ScheduleManual}
	prior, err := idx.UpdateEndpoint(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, "file:///data/a", prior.URL)

	got, err := idx.Endpoint(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "file:///other", got.URL)
	assert.Equal(t, models.ScheduleManual, got.ScheduleType())

	_, err = idx.UpdateEndpoint(ctx, endpoint("zzz"))
	assert.ErrorIs(t, err, common.ErrEndpointNotFound)
	_, err = idx.Endpoint(ctx, "zzz")
	assert.ErrorIs(t, err, common.ErrEndpointNotFound)

	ok, err := idx.HasEndpoint(ctx, "zzz")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := idx.RemoveEndpoint(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = idx.RemoveEndpoint(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func testFirstAndNextPage(t *testing.T, idx index.Index) {
	ctx := context.Background()
	require.NoError(t, idx.AddEndpoint(ctx, endpoint("E1")))
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, idx.Add(ctx, Document("E1", id, 1)))
	}

	page, err := idx.Documents(ctx, models.FirstPage(2), "", "")
	require.NoError(t, err)
	assert.Equal(t, []models.DocumentKey{{Endpoint: "E1", ID: "a"}, {Endpoint: "E1", ID: "b"}}, keysOf(page.Documents))
	assert.Nil(t, page.Previous)
	require.NotNil(t, page.Next)
	assert.Equal(t, models.DocumentKey{Endpoint: "E1", ID: "b"}, *page.Next)
	for _, d := range page.Documents {
		assert.Nil(t, d.Content)
	}

	page, err = idx.Documents(ctx, models.NextPage(*page.Next, 2), "", "")
	require.NoError(t, err)
	assert.Equal(t, []models.DocumentKey{{Endpoint: "E1", ID: "c"}}, keysOf(page.Documents))
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
}

func testPaginationStable(t *testing.T, idx index.Index) {
	keys := seed(t, idx, []string{"E2", "E1", "E3"}, 7)
	for _, limit := range []int{1, 2, 3, 5, 21, 50} {
		t.Run(strconv.Itoa(limit), func(t *testing.T) {
			assert.Equal(t, keys, walkForward(t, idx, limit, ""))
			assert.Equal(t, keys, walkBackward(t, idx, limit, ""))
		})
	}
}

func testCursorRoundTrip(t *testing.T, idx index.Index) {
	ctx := context.Background()
	seed(t, idx, []string{"E1", "E2"}, 5)

	first, err := idx.Documents(ctx, models.FirstPage(3), "", "")
	require.NoError(t, err)
	next, ok := first.NextCursor(3)
	require.True(t, ok)
	second, err := idx.Documents(ctx, next, "", "")
	require.NoError(t, err)
	prev, ok := second.PreviousCursor(3)
	require.True(t, ok)
	back, err := idx.Documents(ctx, prev, "", "")
	require.NoError(t, err)

	assert.Equal(t, keysOf(first.Documents), keysOf(back.Documents))
	assert.Nil(t, back.Previous)
}

// Documents added behind a cursor are not seen by the pages after it and
// removed ones simply drop out; the cursor itself does not shift.
func testChangesBetweenPages(t *testing.T, idx index.Index) {
	ctx := context.Background()
	keys := seed(t, idx, []string{"E1"}, 6)

	first, err := idx.Documents(ctx, models.FirstPage(3), "", "")
	require.NoError(t, err)
	require.Equal(t, keys[:3], keysOf(first.Documents))
	next, ok := first.NextCursor(3)
	require.True(t, ok)

	inserted := Document("E1", keys[1].ID+"a", 9)
	require.NoError(t, idx.Add(ctx, inserted))
	removed, err := idx.Remove(ctx, "E1", keys[4].ID)
	require.NoError(t, err)
	require.True(t, removed)

	second, err := idx.Documents(ctx, next, "", "")
	require.NoError(t, err)
	got := keysOf(second.Documents)
	assert.Equal(t, []models.DocumentKey{keys[3], keys[5]}, got)
	assert.NotContains(t, got, inserted.Key())
	for _, k := range keysOf(first.Documents) {
		assert.NotContains(t, got, k)
	}
}

func testFilterAcrossPages(t *testing.T, idx index.Index) {
	ctx := context.Background()
	require.NoError(t, idx.AddEndpoint(ctx, endpoint("E1")))
	var want []models.DocumentKey
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("d%02d", i)
		require.NoError(t, idx.Add(ctx, Document("E1", id, float64(i))))
		if i >= 5 {
			want = append(want, models.DocumentKey{Endpoint: "E1", ID: id})
		}
	}

	for _, limit := range []int{1, 2, 4, 10} {
		assert.Equal(t, want, walkForward(t, idx, limit, "#Prop:Power >= 5"))
		assert.Equal(t, want, walkBackward(t, idx, limit, "#Prop:Power >= 5"))
	}
}

func testFilterValues(t *testing.T, idx index.Index) {
	ctx := context.Background()
	require.NoError(t, idx.AddEndpoint(ctx, endpoint("E1")))
	require.NoError(t, idx.Add(ctx, Document("E1", "zero", 0)))
	require.NoError(t, idx.Add(ctx, Document("E1", "ten", 10)))

	tests := []struct {
		expr string
		want []string
	}{
		{"#Prop:Power = 0", []string{"zero"}},
		{"#Property:Power > 1", []string{"ten"}},
		{"#Prop:Certified = false", []string{"ten", "zero"}},
		{"#Prop:City = BERLIN", []string{"ten", "zero"}},
		{"#Prop:City ~ erl", []string{"ten", "zero"}},
		{"#Prop:City = Paris", nil},
		{"Shell_ten", []string{"ten"}},
		{"berlin", []string{"ten", "zero"}},
		{"#Prop:Power = 0 || #Prop:Power = 10", []string{"ten", "zero"}},
		{"#Prop:Power = 0 && #Prop:City = Berlin", []string{"zero"}},
		{"ze", []string{"ten", "zero"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			page, err := idx.Documents(ctx, models.FirstPage(10), tt.expr, "en")
			require.NoError(t, err)
			var got []string
			for _, d := range page.Documents {
				got = append(got, d.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := idx.Documents(ctx, models.FirstPage(10), "(#Prop:Power", "")
	assert.ErrorIs(t, err, common.ErrInvalidExpression)
}

func testFilterNonASCII(t *testing.T, idx index.Index) {
	ctx := context.Background()
	require.NoError(t, idx.AddEndpoint(ctx, endpoint("E1")))
	require.NoError(t, idx.Add(ctx, Document("E1", "plain", 1)))
	d := Document("E1", "Рулон", 2)
	d.IDShort = "voilà motor"
	d.Content.Children[1].Children[2].Value = "Århus"
	d.CRC32 = aas.Checksum(d.Content)
	require.NoError(t, idx.Add(ctx, d))

	for _, expr := range []string{
		"Рулон",
		"voilà motor",
		"#Prop:City = Århus",
		"#Prop:City ~ Århu",
		`#Prop:City = "Århus" && Рулон`,
	} {
		t.Run(expr, func(t *testing.T) {
			page, err := idx.Documents(ctx, models.FirstPage(10), expr, "")
			require.NoError(t, err)
			assert.Equal(t, []models.DocumentKey{d.Key()}, keysOf(page.Documents))
		})
	}
}

func testRemoveEndpointCascades(t *testing.T, idx index.Index) {
	ctx := context.Background()
	seed(t, idx, []string{"E1", "E2"}, 3)

	removed, err := idx.RemoveEndpoint(ctx, "E1")
	require.NoError(t, err)
	assert.True(t, removed)

	n, err := idx.Count(ctx, "E1")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = idx.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, ok, err := idx.Find(ctx, "E1", "urn:doc:00")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, k := range walkForward(t, idx, 2, "#Prop:Power >= 0") {
		assert.Equal(t, "E2", k.Endpoint)
	}

	require.NoError(t, idx.AddEndpoint(ctx, endpoint("E1")))
	require.NoError(t, idx.Add(ctx, Document("E1", "urn:doc:00", 1)))
}

func testDocumentLifecycle(t *testing.T, idx index.Index) {
	ctx := context.Background()

	err := idx.Add(ctx, Document("E1", "x", 1))
	assert.ErrorIs(t, err, common.ErrEndpointNotFound)

	require.NoError(t, idx.AddEndpoint(ctx, endpoint("E1")))
	doc := Document("E1", "x", 1)
	require.NoError(t, idx.Add(ctx, doc))
	assert.ErrorIs(t, idx.Add(ctx, doc), common.ErrDocumentExists)

	got, err := idx.Get(ctx, "E1", "x")
	require.NoError(t, err)
	assert.Equal(t, doc.CRC32, got.CRC32)
	assert.True(t, doc.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, doc.Address, got.Address)
	assert.Nil(t, got.Content)

	env, ok, err := idx.Content(ctx, doc.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, doc.CRC32, aas.Checksum(env))
	_, ok, err = idx.Content(ctx, models.DocumentKey{Endpoint: "E1", ID: "missing"})
	require.NoError(t, err)
	assert.False(t, ok)

	changed := Document("E1", "x", 42)
	require.NoError(t, idx.Update(ctx, changed))
	page, err := idx.Documents(ctx, models.FirstPage(5), "#Prop:Power = 42", "")
	require.NoError(t, err)
	assert.Len(t, page.Documents, 1)
	page, err = idx.Documents(ctx, models.FirstPage(5), "#Prop:Power = 1", "")
	require.NoError(t, err)
	assert.Empty(t, page.Documents)

	assert.ErrorIs(t, idx.Update(ctx, Document("E1", "missing", 1)), common.ErrDocumentNotFound)

	removed, err := idx.Remove(ctx, "E1", "x")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = idx.Remove(ctx, "E1", "x")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = idx.Get(ctx, "E1", "x")
	assert.ErrorIs(t, err, common.ErrDocumentNotFound)
	_, ok, err = idx.Content(ctx, doc.Key())
	require.NoError(t, err)
	assert.False(t, ok)
}

func testFindByAssetID(t *testing.T, idx index.Index) {
	ctx := context.Background()
	seed(t, idx, []string{"E1", "E2"}, 2)

	d, ok, err := idx.Find(ctx, "", "asset:urn:doc:01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.DocumentKey{Endpoint: "E1", ID: "urn:doc:01"}, d.Key())

	d, ok, err = idx.Find(ctx, "E2", "urn:doc:01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "E2", d.Endpoint)

	_, ok, err = idx.Find(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testPager(t *testing.T, idx index.Index) {
	ctx := context.Background()
	seed(t, idx, []string{"E1", "E2"}, 5)

	var ids []string
	after := ""
	for {
		docs, err := idx.NextPage(ctx, "E2", after, 2)
		require.NoError(t, err)
		if len(docs) == 0 {
			break
		}
		for _, d := range docs {
			assert.Equal(t, "E2", d.Endpoint)
			ids = append(ids, d.ID)
		}
		after = docs[len(docs)-1].ID
	}
	assert.Equal(t, []string{"urn:doc:00", "urn:doc:01", "urn:doc:02", "urn:doc:03", "urn:doc:04"}, ids)
}

func testClear(t *testing.T, idx index.Index) {
	ctx := context.Background()
	seed(t, idx, []string{"E1", "E2"}, 3)

	require.NoError(t, idx.Clear(ctx, "E1"))
	n, err := idx.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	ok, err := idx.HasEndpoint(ctx, "E1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, idx.Clear(ctx, ""))
	n, err = idx.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = idx.EndpointCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
