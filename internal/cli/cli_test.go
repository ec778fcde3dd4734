package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/index/pebbleindex"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/dmitrijs2005/aasindex/internal/provider"
	"github.com/dmitrijs2005/aasindex/internal/scan"
	gs "github.com/dmitrijs2005/aasindex/internal/server/grpc"
)

const envTemplate = `{
  "assetAdministrationShells": [
    {"modelType": "AssetAdministrationShell", "id": %q, "idShort": %q,
     "assetInformation": {"globalAssetId": "asset:%s"}}
  ]
}`

// startServer serves a provider on an in-memory index over TCP.
func startServer(t *testing.T) string {
	t.Helper()
	idx, err := pebbleindex.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	p := provider.New(idx, &scan.Factory{PageSize: 10}, provider.Options{})
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := gs.NewGRPCServer("", logging.Nop(), p)
	go func() { _ = srv.Serve(ctx, lis) }()

	return lis.Addr().String()
}

func run(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--addr", addr, "--timeout", "5s"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func documentDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(envTemplate, "urn:a", "A", "urn:a")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(body), 0o644))
	return dir
}

func TestVersion(t *testing.T) {
	out, err := run(t, "unused", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Build version:")
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    models.DocumentKey
		wantErr bool
	}{
		{"E1/urn:a", models.DocumentKey{Endpoint: "E1", ID: "urn:a"}, false},
		{"E1/http://x/y", models.DocumentKey{Endpoint: "E1", ID: "http://x/y"}, false},
		{"E1", models.DocumentKey{}, true},
		{"/id", models.DocumentKey{}, true},
		{"E1/", models.DocumentKey{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndpointsAdd_ValidatesBeforeDialing(t *testing.T) {
	_, err := run(t, "127.0.0.1:1", "endpoints", "add", "E1", "--url", "x", "--type", "bogus")
	assert.ErrorIs(t, err, common.ErrInvalidEndpoint)
}

func TestEndpointsAndDocuments(t *testing.T) {
	addr := startServer(t)
	dir := documentDir(t)

	out, err := run(t, addr, "endpoints", "add", "local",
		"--type", "FileSystem", "--url", "file://"+dir, "--schedule", "manual")
	require.NoError(t, err)
	assert.Equal(t, "endpoint local added\n", out)

	_, err = run(t, addr, "endpoints", "add", "local", "--type", "FileSystem", "--url", "file://"+dir)
	assert.ErrorIs(t, err, common.ErrEndpointExists)

	out, err = run(t, addr, "endpoints", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "manual")

	out, err = run(t, addr, "endpoints", "show", "local")
	require.NoError(t, err)
	var e models.Endpoint
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, models.EndpointFileSystem, e.Type)

	out, err = run(t, addr, "scan", "local")
	require.NoError(t, err)
	assert.Equal(t, "added 1, removed 0, updated 0, unchanged 0, failed 0\n", out)

	out, err = run(t, addr, "documents")
	require.NoError(t, err)
	assert.Contains(t, out, "urn:a")
	assert.NotContains(t, out, "next:")

	out, err = run(t, addr, "documents", "--json", "--limit", "1")
	require.NoError(t, err)
	var page models.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "urn:a", page.Documents[0].ID)

	out, err = run(t, addr, "documents", "--after", "local/urn:a")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ENDPOINT"))
	assert.Equal(t, "previous: --before local/urn:a", lines[1])

	out, err = run(t, addr, "document", "local", "urn:a")
	require.NoError(t, err)
	assert.Contains(t, out, `"idShort": "A"`)

	out, err = run(t, addr, "document", "local", "urn:a", "--content")
	require.NoError(t, err)
	assert.Contains(t, out, `"modelType": "AssetAdministrationShell"`)

	out, err = run(t, addr, "endpoints", "update", "local",
		"--type", "FileSystem", "--url", "file://"+dir, "--schedule", "every", "--interval", "1h")
	require.NoError(t, err)
	assert.Equal(t, "endpoint local updated\n", out)

	out, err = run(t, addr, "endpoints", "rm", "local")
	require.NoError(t, err)
	assert.Equal(t, "endpoint local removed\n", out)

	_, err = run(t, addr, "endpoints", "show", "local")
	assert.ErrorIs(t, err, common.ErrEndpointNotFound)
}

func TestScanAsync_RejectsScheduledEndpoint(t *testing.T) {
	addr := startServer(t)
	dir := documentDir(t)

	_, err := run(t, addr, "endpoints", "add", "E1", "--type", "FileSystem", "--url", "file://"+dir, "--schedule", "disabled")
	require.NoError(t, err)

	_, err = run(t, addr, "scan", "E1", "--async")
	assert.ErrorIs(t, err, common.ErrManualScanNotAllowed)
}

func TestReset(t *testing.T) {
	addr := startServer(t)
	out, err := run(t, addr, "reset")
	require.NoError(t, err)
	assert.Equal(t, "index reset\n", out)
}

func TestWatch(t *testing.T) {
	addr := startServer(t)
	dir := documentDir(t)

	var (
		wg  sync.WaitGroup
		out string
		err error
	)
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		out, err = run(t, addr, "watch", "--count", "1")
	}()

	// the subscription starts asynchronously; keep producing until seen
	for i := 0; ; i++ {
		_, addErr := run(t, addr, "endpoints", "add", fmt.Sprintf("w%d", i),
			"--type", "FileSystem", "--url", "file://"+dir, "--schedule", "disabled")
		require.NoError(t, addErr)
		select {
		case <-done:
		case <-time.After(50 * time.Millisecond):
			if i < 100 {
				continue
			}
			t.Fatal("watch did not receive a notification")
		}
		break
	}
	wg.Wait()

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var n provider.Notification
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &n))
	assert.Equal(t, provider.EndpointAdded, n.Type)
}
