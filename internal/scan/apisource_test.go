package scan

import (
	"context"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiBase = "http://aas.example.com/api/v3.0"

func shellJSON(id, idShort string) string {
	return `{"modelType":"AssetAdministrationShell","id":"` + id + `","idShort":"` + idShort + `",` +
		`"assetInformation":{"globalAssetId":"asset:` + id + `"},` +
		`"submodels":[{"type":"ModelReference","keys":[{"type":"Submodel","value":"` + id + `/sm"}]}]}`
}

func newAPISource(t *testing.T) (*APISource, *http.Client) {
	t.Helper()
	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(func() {
		gock.RestoreClient(client)
		gock.Off()
	})
	e := &models.Endpoint{Name: "api", URL: apiBase + "/", Type: models.EndpointAASAPI,
		Headers: map[string]string{"Authorization": "Bearer t0k"}}
	return NewAPISource(e, client, 2, nil), client
}

func TestAPISource_PagesAndSorts(t *testing.T) {
	src, _ := newAPISource(t)

	gock.New(apiBase).Get("/shells").MatchParam("limit", "2").
		MatchHeader("Authorization", "Bearer t0k").
		Reply(200).JSON(`{"result":[` + shellJSON("urn:c", "C") + `,` + shellJSON("urn:a", "A") + `],"paging_metadata":{"cursor":"p2"}}`)
	gock.New(apiBase).Get("/shells").MatchParam("cursor", "p2").
		Reply(200).JSON(`{"result":[` + shellJSON("urn:b", "B") + `],"paging_metadata":{}}`)

	ctx := context.Background()
	require.NoError(t, src.Open(ctx))

	p, err := src.NextPage(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []models.Label{{ID: "urn:a", IDShort: "A"}, {ID: "urn:b", IDShort: "B"}}, p.Items)
	p, err = src.NextPage(ctx, p.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []models.Label{{ID: "urn:c", IDShort: "C"}}, p.Items)
	assert.Empty(t, p.NextCursor)
	assert.True(t, gock.IsDone())
}

func TestAPISource_CreateDocument(t *testing.T) {
	src, _ := newAPISource(t)

	gock.New(apiBase).Get("/shells").MatchParam("limit", "2").
		Reply(200).JSON(`{"result":[` + shellJSON("urn:a", "A") + `]}`)
	gock.New(apiBase).Get("/shells/"+encodeID("urn:a")).
		MatchHeader("Authorization", "Bearer t0k").
		Reply(200).JSON(shellJSON("urn:a", "A"))
	gock.New(apiBase).Get("/submodels/" + encodeID("urn:a/sm")).
		Reply(200).JSON(`{"modelType":"Submodel","id":"urn:a/sm","idShort":"Nameplate","submodelElements":[` +
		`{"modelType":"Property","idShort":"Power","valueType":"xs:double","value":"0"}]}`)

	ctx := context.Background()
	require.NoError(t, src.Open(ctx))

	doc, err := src.CreateDocument(ctx, models.Label{ID: "urn:a"})
	require.NoError(t, err)
	assert.Equal(t, "api", doc.Endpoint)
	assert.Equal(t, "asset:urn:a", doc.AssetID)
	assert.Equal(t, "/shells/"+encodeID("urn:a"), doc.Address)
	assert.True(t, doc.OnlineReady)
	require.Len(t, doc.Content.Children, 2)
	assert.Equal(t, "Nameplate", doc.Content.Children[1].IDShort)
	assert.True(t, gock.IsDone())

	_, err = src.CreateDocument(ctx, models.Label{ID: "urn:unknown"})
	assert.ErrorIs(t, err, common.ErrDocumentNotFound)
}

func TestAPISource_MissingSubmodelIsSkipped(t *testing.T) {
	src, _ := newAPISource(t)

	gock.New(apiBase).Get("/shells").MatchParam("limit", "2").
		Reply(200).JSON(`{"result":[` + shellJSON("urn:a", "A") + `]}`)
	gock.New(apiBase).Get("/shells/" + encodeID("urn:a")).
		Reply(200).JSON(shellJSON("urn:a", "A"))
	gock.New(apiBase).Get("/submodels/" + encodeID("urn:a/sm")).Reply(404)

	ctx := context.Background()
	require.NoError(t, src.Open(ctx))
	doc, err := src.CreateDocument(ctx, models.Label{ID: "urn:a"})
	require.NoError(t, err)
	assert.Len(t, doc.Content.Children, 1)
}

func TestAPISource_OpenFails(t *testing.T) {
	src, _ := newAPISource(t)
	gock.New(apiBase).Get("/shells").Reply(500).BodyString("down")

	err := src.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
