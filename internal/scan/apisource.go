package scan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// APISource enumerates the shells of an AAS HTTP API (V3 repository
// profile). Servers page shells in their own order, so Open walks all
// shell pages once and keeps the sorted labels.
type APISource struct {
	endpoint *models.Endpoint
	client   *http.Client
	pageSize int
	logger   logging.Logger

	labels []models.Label
	known  map[string]struct{}
}

func NewAPISource(endpoint *models.Endpoint, client *http.Client, pageSize int, logger logging.Logger) *APISource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &APISource{endpoint: endpoint, client: client, pageSize: pageSize, logger: logger}
}

type shellHeader struct {
	ID        string `json:"id"`
	IDShort   string `json:"idShort"`
	Submodels []struct {
		Keys []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"keys"`
	} `json:"submodels"`
}

type shellPage struct {
	Result         []json.RawMessage `json:"result"`
	PagingMetadata struct {
		Cursor string `json:"cursor"`
	} `json:"paging_metadata"`
}

func encodeID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func (s *APISource) Open(ctx context.Context) error {
	s.labels = s.labels[:0]
	s.known = make(map[string]struct{})

	cursor := ""
	for {
		q := url.Values{"limit": {strconv.Itoa(s.pageSize)}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var page shellPage
		if err := s.getJSON(ctx, "/shells?"+q.Encode(), &page); err != nil {
			return err
		}
		for _, raw := range page.Result {
			var h shellHeader
			if err := json.Unmarshal(raw, &h); err != nil || h.ID == "" {
				s.logger.Warn(ctx, "skipping malformed shell", "endpoint", s.endpoint.Name, "error", err)
				continue
			}
			if _, dup := s.known[h.ID]; dup {
				continue
			}
			s.known[h.ID] = struct{}{}
			s.labels = append(s.labels, models.Label{ID: h.ID, IDShort: h.IDShort})
		}
		next := page.PagingMetadata.Cursor
		if next == "" || next == cursor || len(page.Result) == 0 {
			break
		}
		cursor = next
	}

	slices.SortFunc(s.labels, func(a, b models.Label) int { return strings.Compare(a.ID, b.ID) })
	return nil
}

func (s *APISource) Close(ctx context.Context) error {
	s.labels, s.known = nil, nil
	s.client.CloseIdleConnections()
	return nil
}

func (s *APISource) NextPage(ctx context.Context, cursor string) (Page, error) {
	return pageOf(s.labels, cursor, s.pageSize, func(l models.Label) models.Label { return l })
}

// CreateDocument fetches the shell and its submodels and assembles them
// into one environment.
func (s *APISource) CreateDocument(ctx context.Context, label models.Label) (*models.Document, error) {
	if _, ok := s.known[label.ID]; !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrDocumentNotFound, label.ID)
	}

	address := "/shells/" + encodeID(label.ID)
	var raw json.RawMessage
	if err := s.getJSON(ctx, address, &raw); err != nil {
		return nil, err
	}
	shell, err := aas.ParseElement(raw)
	if err != nil {
		return nil, err
	}
	if shell.ModelType == "" {
		shell.ModelType = aas.ModelShell
	}
	var h shellHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}

	env := &aas.Node{ModelType: aas.ModelEnvironment, Children: []*aas.Node{shell}}
	for _, ref := range h.Submodels {
		for _, k := range ref.Keys {
			if k.Type != aas.ModelSubmodel || k.Value == "" {
				continue
			}
			var sm json.RawMessage
			if err := s.getJSON(ctx, "/submodels/"+encodeID(k.Value), &sm); err != nil {
				s.logger.Warn(ctx, "skipping submodel", "endpoint", s.endpoint.Name, "shell", label.ID, "submodel", k.Value, "error", err)
				continue
			}
			n, err := aas.ParseElement(sm)
			if err != nil {
				return nil, err
			}
			if n.ModelType == "" {
				n.ModelType = aas.ModelSubmodel
			}
			env.Children = append(env.Children, n)
		}
	}

	doc, err := NewDocument(s.endpoint.Name, address, env, shell.Thumbnail, time.Now())
	if err != nil {
		return nil, err
	}
	doc.OnlineReady = true
	return doc, nil
}

func (s *APISource) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(s.endpoint.URL, "/")+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.endpoint.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s", common.ErrDocumentNotFound, path)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
