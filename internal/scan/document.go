package scan

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// IsDocumentFile reports whether name looks like an AAS environment or
// package.
func IsDocumentFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".aasx":
		return true
	}
	return false
}

// ReadEnvironment parses a JSON environment or an AASX package and
// returns the environment with the package thumbnail part, if any.
func ReadEnvironment(name string, data []byte) (*aas.Node, string, error) {
	if strings.EqualFold(path.Ext(name), ".aasx") {
		pkg, err := aas.ReadPackage(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, "", err
		}
		return pkg.Environment, pkg.Thumbnail, nil
	}
	env, err := aas.ParseEnvironment(data)
	if err != nil {
		return nil, "", err
	}
	thumbnail := ""
	if shell := env.FirstShell(); shell != nil {
		thumbnail = shell.Thumbnail
	}
	return env, thumbnail, nil
}

// NewDocument builds the document record for an environment. Identity
// comes from the environment's first shell.
func NewDocument(endpoint, address string, env *aas.Node, thumbnail string, modified time.Time) (*models.Document, error) {
	shell := env.FirstShell()
	if shell == nil || shell.ID == "" {
		return nil, fmt.Errorf("%w: %s has no identifiable shell", aas.ErrUnsupportedFormat, address)
	}
	return &models.Document{
		Endpoint:  endpoint,
		ID:        shell.ID,
		AssetID:   shell.GlobalAssetID,
		IDShort:   shell.IDShort,
		Address:   address,
		CRC32:     aas.Checksum(env),
		Timestamp: modified.UTC(),
		Thumbnail: thumbnail,
		Content:   env,
	}, nil
}
