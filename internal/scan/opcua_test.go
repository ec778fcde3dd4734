package scan

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrowser struct {
	labels []models.Label
	closed bool
}

func (b *fakeBrowser) Browse(ctx context.Context) ([]models.Label, error) { return b.labels, nil }

func (b *fakeBrowser) Read(ctx context.Context, id string) (*aas.Node, error) {
	return &aas.Node{ModelType: aas.ModelShell, ID: id, IDShort: "S"}, nil
}

func (b *fakeBrowser) Close(ctx context.Context) error { b.closed = true; return nil }

func TestOPCUASource(t *testing.T) {
	b := &fakeBrowser{labels: []models.Label{{ID: "urn:2"}, {ID: "urn:1"}, {ID: "urn:2"}}}
	dial := func(ctx context.Context, e *models.Endpoint) (Browser, error) { return b, nil }
	src := NewOPCUASource(&models.Endpoint{Name: "opc", URL: "opc.tcp://plc:4840", Type: models.EndpointOPCUA}, dial, 10)

	ctx := context.Background()
	require.NoError(t, src.Open(ctx))
	p, err := src.NextPage(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []models.Label{{ID: "urn:1"}, {ID: "urn:2"}}, p.Items)

	doc, err := src.CreateDocument(ctx, models.Label{ID: "urn:1"})
	require.NoError(t, err)
	assert.Equal(t, aas.ModelEnvironment, doc.Content.ModelType)
	assert.Equal(t, "urn:1", doc.ID)

	require.NoError(t, src.Close(ctx))
	assert.True(t, b.closed)
	_, err = src.CreateDocument(ctx, models.Label{ID: "urn:1"})
	assert.ErrorIs(t, err, common.ErrSourceNotOpen)
}

func TestOPCUASource_DialError(t *testing.T) {
	dial := func(ctx context.Context, e *models.Endpoint) (Browser, error) { return nil, errors.New("refused") }
	src := NewOPCUASource(&models.Endpoint{Name: "opc", URL: "opc.tcp://plc:4840"}, dial, 10)
	assert.ErrorContains(t, src.Open(context.Background()), "refused")
}

func TestFactory(t *testing.T) {
	f := &Factory{PageSize: 5, S3Client: &fakeS3{}, HTTPClient: &http.Client{}}
	ctx := context.Background()

	src, err := f.New(ctx, &models.Endpoint{Name: "fs", URL: t.TempDir(), Type: models.EndpointFileSystem})
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	src, err = f.New(ctx, &models.Endpoint{Name: "s3", URL: "s3://bucket/x", Type: models.EndpointS3})
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	src, err = f.New(ctx, &models.Endpoint{Name: "api", URL: "http://x", Type: models.EndpointAASAPI})
	require.NoError(t, err)
	assert.IsType(t, &APISource{}, src)

	_, err = f.New(ctx, &models.Endpoint{Name: "opc", URL: "opc.tcp://x", Type: models.EndpointOPCUA})
	assert.ErrorIs(t, err, common.ErrUnsupportedEndpoint)

	f.OPCUA = func(ctx context.Context, e *models.Endpoint) (Browser, error) { return &fakeBrowser{}, nil }
	src, err = f.New(ctx, &models.Endpoint{Name: "opc", URL: "opc.tcp://x", Type: models.EndpointOPCUA})
	require.NoError(t, err)
	assert.IsType(t, &OPCUASource{}, src)

	_, err = f.New(ctx, &models.Endpoint{Name: "s3", URL: "http://bucket", Type: models.EndpointS3})
	assert.ErrorIs(t, err, common.ErrInvalidEndpoint)
}
