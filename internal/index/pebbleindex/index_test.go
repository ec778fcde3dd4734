package pebbleindex

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/index/indextest"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) index.Index {
	t.Helper()
	idx, err := Open("", nil)
	require.NoError(t, err)
	return idx
}

func TestConformance_Pebble(t *testing.T) {
	indextest.Run(t, openMem)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, idx.AddEndpoint(ctx, &models.Endpoint{Name: "E1", URL: "file:///x", Type: models.EndpointFileSystem}))
	require.NoError(t, idx.Add(ctx, indextest.Document("E1", "a", 3)))
	require.NoError(t, idx.Close())

	idx, err = Open(dir, nil)
	require.NoError(t, err)
	defer idx.Close()

	d, err := idx.Get(ctx, "E1", "a")
	require.NoError(t, err)
	env, ok, err := idx.Content(ctx, d.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d.CRC32, aas.Checksum(env))
}

func TestUpdate_MovesAssetAlias(t *testing.T) {
	idx := openMem(t).(*Index)
	defer idx.Close()
	ctx := context.Background()

	require.NoError(t, idx.AddEndpoint(ctx, &models.Endpoint{Name: "E1", URL: "file:///x", Type: models.EndpointFileSystem}))
	doc := indextest.Document("E1", "a", 1)
	require.NoError(t, idx.Add(ctx, doc))

	changed := indextest.Document("E1", "a", 1)
	changed.AssetID = "asset:new"
	require.NoError(t, idx.Update(ctx, changed))

	_, ok, err := idx.Find(ctx, "", "asset:a")
	require.NoError(t, err)
	assert.False(t, ok)
	d, ok, err := idx.Find(ctx, "", "asset:new")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", d.ID)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []byte("d0"), upperBound([]byte("d/")))
	assert.Equal(t, []byte{0x01}, upperBound([]byte{0x00, 0xff}))
	assert.Nil(t, upperBound([]byte{0xff}))

	k, ok := parseAliasKey(aliasKey("asset:1", "E1", "urn:x"))
	require.True(t, ok)
	assert.Equal(t, models.DocumentKey{Endpoint: "E1", ID: "urn:x"}, k)
}
