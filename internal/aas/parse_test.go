package aas

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment([]byte(sampleEnvironment))
	require.NoError(t, err)

	assert.Equal(t, ModelEnvironment, env.ModelType)
	require.Len(t, env.Children, 2)

	shell := env.FirstShell()
	require.NotNil(t, shell)
	assert.Equal(t, "https://example.com/ids/aas/motor-1", shell.ID)
	assert.Equal(t, "Motor1", shell.IDShort)
	assert.Equal(t, "https://example.com/ids/asset/motor-1", shell.GlobalAssetID)
	assert.Equal(t, "/thumbnail.png", shell.Thumbnail)

	sm := env.Children[1]
	assert.Equal(t, ModelSubmodel, sm.ModelType)
	require.Len(t, sm.Children, 7)
	assert.Equal(t, "ACME", sm.Children[0].Value)
	assert.Equal(t, "xs:double", sm.Children[1].ValueType)

	mlp := sm.Children[5]
	assert.Equal(t, "Elektromotor", mlp.Text("DE"))
	assert.Equal(t, "Electric motor", mlp.Text("fr"))

	smc := sm.Children[6]
	require.Len(t, smc.Children, 1)
	assert.Equal(t, "Berlin", smc.Children[0].Value)
}

func TestParseEnvironment_V2Identification(t *testing.T) {
	env, err := ParseEnvironment([]byte(`{"assetAdministrationShells":[
		{"modelType":{"name":"AssetAdministrationShell"},"identification":{"idType":"IRI","id":"urn:v2"},"idShort":"Old"}
	]}`))
	require.NoError(t, err)
	shell := env.FirstShell()
	require.NotNil(t, shell)
	assert.Equal(t, "urn:v2", shell.ID)
}

func TestParseEnvironment_Errors(t *testing.T) {
	_, err := ParseEnvironment([]byte(`<aas/>`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseEnvironment([]byte(`{"conceptDescriptions":[]}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWalk_SkipsChildren(t *testing.T) {
	env, err := ParseEnvironment([]byte(sampleEnvironment))
	require.NoError(t, err)

	var visited []string
	env.Walk(func(n *Node) bool {
		visited = append(visited, n.IDShort)
		return n.ModelType != "SubmodelElementCollection"
	})
	assert.Contains(t, visited, "Address")
	assert.NotContains(t, visited, "City")
}

func TestChecksum(t *testing.T) {
	a, err := ParseEnvironment([]byte(sampleEnvironment))
	require.NoError(t, err)
	b, err := ParseEnvironment([]byte(sampleEnvironment))
	require.NoError(t, err)

	assert.Equal(t, Checksum(a), Checksum(b))

	b.Children[1].Children[0].Value = "Other"
	assert.NotEqual(t, Checksum(a), Checksum(b))
	assert.Zero(t, Checksum(nil))
}

func TestAbbreviationOf(t *testing.T) {
	assert.Equal(t, "Prop", AbbreviationOf("Property"))
	assert.Equal(t, "Prop", AbbreviationOf("prop"))
	assert.Equal(t, "MLP", AbbreviationOf("MultiLanguageProperty"))
	assert.Equal(t, "SMC", AbbreviationOf("smc"))
	assert.Equal(t, "Custom", AbbreviationOf("Custom"))
}

func buildPackage(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestReadPackage(t *testing.T) {
	r := buildPackage(t, map[string]string{
		"[Content_Types].xml":     "<Types/>",
		"aasx/motor/motor.json":   sampleEnvironment,
		"thumbnail.png":           "png",
		"aasx/aasx-origin":        "",
		"aasx/motor/docs/img.png": "png",
	})

	pkg, err := ReadPackage(r, r.Size())
	require.NoError(t, err)
	require.NotNil(t, pkg.Environment.FirstShell())
	assert.Equal(t, "thumbnail.png", pkg.Thumbnail)
}

func TestReadPackage_NoJSON(t *testing.T) {
	r := buildPackage(t, map[string]string{"aasx/motor/motor.xml": "<environment/>"})
	_, err := ReadPackage(r, r.Size())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ReadPackage(bytes.NewReader([]byte("not a zip")), 9)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
