package scan

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

type fileLabel struct {
	label    models.Label
	name     string
	modified time.Time
}

// FileSource serves the environments and packages of a FileStore. Files
// are unordered, so Open reads every document once and keeps its label;
// full documents are re-read on demand.
type FileSource struct {
	endpoint string
	store    FileStore
	pageSize int
	logger   logging.Logger

	labels []fileLabel
	byID   map[string]int
}

func NewFileSource(endpoint string, store FileStore, pageSize int, logger logging.Logger) *FileSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileSource{endpoint: endpoint, store: store, pageSize: pageSize, logger: logger}
}

func (s *FileSource) Open(ctx context.Context) error {
	files, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	s.labels = s.labels[:0]
	s.byID = make(map[string]int)
	for _, f := range files {
		if !IsDocumentFile(f.Name) {
			continue
		}
		doc, err := s.read(ctx, f.Name, f.Modified)
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable file", "endpoint", s.endpoint, "file", f.Name, "error", err)
			continue
		}
		if _, dup := s.byID[doc.ID]; dup {
			s.logger.Warn(ctx, "duplicate document id", "endpoint", s.endpoint, "id", doc.ID, "file", f.Name)
			continue
		}
		s.byID[doc.ID] = len(s.labels)
		s.labels = append(s.labels, fileLabel{
			label:    models.Label{ID: doc.ID, IDShort: doc.IDShort},
			name:     f.Name,
			modified: f.Modified,
		})
	}

	slices.SortFunc(s.labels, func(a, b fileLabel) int { return strings.Compare(a.label.ID, b.label.ID) })
	for i, l := range s.labels {
		s.byID[l.label.ID] = i
	}
	return nil
}

func (s *FileSource) Close(ctx context.Context) error {
	s.labels, s.byID = nil, nil
	return nil
}

func (s *FileSource) NextPage(ctx context.Context, cursor string) (Page, error) {
	return pageOf(s.labels, cursor, s.pageSize, func(l fileLabel) models.Label { return l.label })
}

func (s *FileSource) CreateDocument(ctx context.Context, label models.Label) (*models.Document, error) {
	i, ok := s.byID[label.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrDocumentNotFound, label.ID)
	}
	l := s.labels[i]
	doc, err := s.read(ctx, l.name, l.modified)
	if err != nil {
		return nil, err
	}
	if doc.ID != label.ID {
		return nil, fmt.Errorf("%w: %s changed identity", common.ErrDocumentNotFound, l.name)
	}
	return doc, nil
}

func (s *FileSource) read(ctx context.Context, name string, modified time.Time) (*models.Document, error) {
	data, err := s.store.ReadFile(ctx, name)
	if err != nil {
		return nil, err
	}
	env, thumbnail, err := ReadEnvironment(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return NewDocument(s.endpoint, name, env, thumbnail, modified)
}
