package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/dmitrijs2005/aasindex/internal/provider"
)

// Client calls a remote IndexService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to address without transport security.
func Dial(address string) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

// remoteError carries the server message and unwraps to the matching
// sentinel so callers can use errors.Is across the wire.
type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }

var sentinels = []error{
	common.ErrEndpointNotFound,
	common.ErrDocumentNotFound,
	common.ErrEndpointExists,
	common.ErrDocumentExists,
	common.ErrScanInProgress,
	common.ErrManualScanNotAllowed,
	common.ErrInvalidCursor,
	common.ErrInvalidExpression,
	common.ErrInvalidEndpoint,
	common.ErrReadOnly,
	common.ErrUnsupportedEndpoint,
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, s := range sentinels {
		if strings.Contains(st.Message(), s.Error()) {
			return &remoteError{sentinel: s, msg: st.Message()}
		}
	}
	return err
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return mapError(err)
	}
	if out == nil {
		return nil
	}
	return fromStruct(resp, out)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.invoke(ctx, "Ping", struct{}{}, nil)
}

func (c *Client) Endpoints(ctx context.Context) ([]*models.Endpoint, error) {
	var resp endpointsResponse
	if err := c.invoke(ctx, "ListEndpoints", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Endpoints, nil
}

func (c *Client) Endpoint(ctx context.Context, name string) (*models.Endpoint, error) {
	var e models.Endpoint
	if err := c.invoke(ctx, "GetEndpoint", nameRequest{Name: name}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) AddEndpoint(ctx context.Context, e *models.Endpoint) error {
	return c.invoke(ctx, "AddEndpoint", e, nil)
}

func (c *Client) UpdateEndpoint(ctx context.Context, e *models.Endpoint) error {
	return c.invoke(ctx, "UpdateEndpoint", e, nil)
}

func (c *Client) RemoveEndpoint(ctx context.Context, name string) error {
	return c.invoke(ctx, "RemoveEndpoint", nameRequest{Name: name}, nil)
}

func (c *Client) Documents(ctx context.Context, cursor models.Cursor, expression, language string) (*models.Page, error) {
	var page models.Page
	req := documentsRequest{Cursor: cursor, Expression: expression, Language: language}
	if err := c.invoke(ctx, "GetDocuments", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Document(ctx context.Context, endpoint, id string) (*models.Document, error) {
	var doc models.Document
	if err := c.invoke(ctx, "GetDocument", documentRequest{Endpoint: endpoint, ID: id}, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) Content(ctx context.Context, endpoint, id string) (*aas.Node, error) {
	var env aas.Node
	if err := c.invoke(ctx, "GetContent", documentRequest{Endpoint: endpoint, ID: id}, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) UpdateDocument(ctx context.Context, doc *models.Document) error {
	return c.invoke(ctx, "UpdateDocument", doc, nil)
}

func (c *Client) StartScan(ctx context.Context, name string) error {
	return c.invoke(ctx, "StartScan", nameRequest{Name: name}, nil)
}

func (c *Client) ScanEndpoint(ctx context.Context, name string) (provider.ScanStats, error) {
	var stats provider.ScanStats
	err := c.invoke(ctx, "ScanEndpoint", nameRequest{Name: name}, &stats)
	return stats, err
}

func (c *Client) Reset(ctx context.Context) error {
	return c.invoke(ctx, "Reset", struct{}{}, nil)
}

// Watcher receives notifications from a Watch stream.
type Watcher struct {
	stream grpc.ClientStream
}

// Watch opens a notification stream. It ends when ctx is canceled.
func (c *Client) Watch(ctx context.Context) (*Watcher, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+ServiceName+"/Watch")
	if err != nil {
		return nil, mapError(err)
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return nil, mapError(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, mapError(err)
	}
	return &Watcher{stream: stream}, nil
}

// Recv blocks for the next notification. It returns io.EOF when the
// server ends the stream.
func (w *Watcher) Recv() (provider.Notification, error) {
	var n provider.Notification
	msg := new(structpb.Struct)
	if err := w.stream.RecvMsg(msg); err != nil {
		return n, mapError(err)
	}
	err := fromStruct(msg, &n)
	return n, err
}
