package scan

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Browser is the part of an OPC-UA client the source needs: listing the
// AAS nodes of the address space and reading one as an environment.
type Browser interface {
	Browse(ctx context.Context) ([]models.Label, error)
	Read(ctx context.Context, id string) (*aas.Node, error)
	Close(ctx context.Context) error
}

// BrowserDialer connects to an OPC-UA server.
type BrowserDialer func(ctx context.Context, endpoint *models.Endpoint) (Browser, error)

// OPCUASource enumerates the shells an OPC-UA server exposes.
type OPCUASource struct {
	endpoint *models.Endpoint
	dial     BrowserDialer
	pageSize int

	browser Browser
	labels  []models.Label
}

func NewOPCUASource(endpoint *models.Endpoint, dial BrowserDialer, pageSize int) *OPCUASource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &OPCUASource{endpoint: endpoint, dial: dial, pageSize: pageSize}
}

func (s *OPCUASource) Open(ctx context.Context) error {
	b, err := s.dial(ctx, s.endpoint)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.endpoint.URL, err)
	}
	labels, err := b.Browse(ctx)
	if err != nil {
		_ = b.Close(ctx)
		return fmt.Errorf("browse %s: %w", s.endpoint.URL, err)
	}
	slices.SortFunc(labels, func(a, b models.Label) int { return strings.Compare(a.ID, b.ID) })
	s.browser, s.labels = b, slices.CompactFunc(labels, func(a, b models.Label) bool { return a.ID == b.ID })
	return nil
}

func (s *OPCUASource) Close(ctx context.Context) error {
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close(ctx)
	s.browser, s.labels = nil, nil
	return err
}

func (s *OPCUASource) NextPage(ctx context.Context, cursor string) (Page, error) {
	return pageOf(s.labels, cursor, s.pageSize, func(l models.Label) models.Label { return l })
}

func (s *OPCUASource) CreateDocument(ctx context.Context, label models.Label) (*models.Document, error) {
	if s.browser == nil {
		return nil, common.ErrSourceNotOpen
	}
	env, err := s.browser.Read(ctx, label.ID)
	if err != nil {
		return nil, err
	}
	if env.ModelType != aas.ModelEnvironment {
		env = &aas.Node{ModelType: aas.ModelEnvironment, Children: []*aas.Node{env}}
	}
	doc, err := NewDocument(s.endpoint.Name, label.ID, env, "", time.Now())
	if err != nil {
		return nil, err
	}
	doc.OnlineReady = true
	return doc, nil
}
