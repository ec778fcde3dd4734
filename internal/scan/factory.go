package scan

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Factory builds the source for an endpoint by its type.
type Factory struct {
	PageSize   int
	HTTPClient *http.Client
	S3         S3Config
	// S3Client overrides the client built from S3.
	S3Client S3API
	// OPCUA connects to OPC-UA servers. Without it OPC_UA endpoints are
	// unsupported.
	OPCUA  BrowserDialer
	Logger logging.Logger

	mu sync.Mutex
}

func (f *Factory) s3Client(ctx context.Context) (S3API, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.S3Client == nil {
		c, err := NewS3Client(ctx, f.S3)
		if err != nil {
			return nil, err
		}
		f.S3Client = c
	}
	return f.S3Client, nil
}

// New returns an unopened source for e.
func (f *Factory) New(ctx context.Context, e *models.Endpoint) (Source, error) {
	logger := f.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With("endpoint", e.Name)

	switch e.Type {
	case models.EndpointFileSystem, models.EndpointWebDAV:
		store, err := NewLocalStore(e.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidEndpoint, err)
		}
		return NewFileSource(e.Name, store, f.PageSize, logger), nil
	case models.EndpointS3:
		client, err := f.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		store, err := NewS3Store(client, e.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidEndpoint, err)
		}
		return NewFileSource(e.Name, store, f.PageSize, logger), nil
	case models.EndpointAASAPI:
		return NewAPISource(e, f.HTTPClient, f.PageSize, logger), nil
	case models.EndpointOPCUA:
		if f.OPCUA == nil {
			return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedEndpoint, e.Type)
		}
		return NewOPCUASource(e, f.OPCUA, f.PageSize), nil
	}
	return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedEndpoint, e.Type)
}
