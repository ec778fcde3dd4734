package scan

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func envJSON(id, idShort, city string) string {
	return fmt.Sprintf(`{
  "assetAdministrationShells": [
    {"modelType": "AssetAdministrationShell", "id": %q, "idShort": %q,
     "assetInformation": {"globalAssetId": "asset:%s"}}
  ],
  "submodels": [
    {"modelType": "Submodel", "id": "%s/sm", "idShort": "Nameplate",
     "submodelElements": [{"modelType": "Property", "idShort": "City", "valueType": "xs:string", "value": %q}]}
  ]
}`, id, idShort, id, id, city)
}

func aasxBytes(t *testing.T, env string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{"aasx/aas/aas.json": env, "thumb.png": "png"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}
