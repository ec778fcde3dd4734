package pebbleindex

import (
	"strings"

	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Key layout:
//
//	e/<endpoint>                      endpoint JSON
//	d/<endpoint>\x00<id>              document record JSON (no content)
//	c/<uuid>                          content JSON
//	a/<assetId>\x00<endpoint>\x00<id> asset id alias, empty value
//
// Endpoint names never contain \x00, so byte order of d/ keys is the
// global (endpoint, id) order.
const (
	prefixEndpoint = "e/"
	prefixDocument = "d/"
	prefixContent  = "c/"
	prefixAlias    = "a/"
	sep            = "\x00"
)

func endpointKey(name string) []byte { return []byte(prefixEndpoint + name) }

func documentKey(endpoint, id string) []byte {
	return []byte(prefixDocument + endpoint + sep + id)
}

func documentPrefix(endpoint string) []byte {
	return []byte(prefixDocument + endpoint + sep)
}

func contentKey(uuid string) []byte { return []byte(prefixContent + uuid) }

func aliasKey(assetID, endpoint, id string) []byte {
	return []byte(prefixAlias + assetID + sep + endpoint + sep + id)
}

func aliasPrefix(assetID string) []byte {
	return []byte(prefixAlias + assetID + sep)
}

// upperBound returns the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func parseAliasKey(k []byte) (models.DocumentKey, bool) {
	rest, ok := strings.CutPrefix(string(k), prefixAlias)
	if !ok {
		return models.DocumentKey{}, false
	}
	parts := strings.SplitN(rest, sep, 3)
	if len(parts) != 3 {
		return models.DocumentKey{}, false
	}
	return models.DocumentKey{Endpoint: parts[1], ID: parts[2]}, true
}
