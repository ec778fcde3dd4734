package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Payloads travel as google.protobuf.Struct holding the JSON form of the
// models.

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

type nameRequest struct {
	Name string `json:"name"`
}

type documentRequest struct {
	Endpoint string `json:"endpoint,omitempty"`
	ID       string `json:"id"`
}

type documentsRequest struct {
	Cursor     models.Cursor `json:"cursor"`
	Expression string        `json:"expression,omitempty"`
	Language   string        `json:"language,omitempty"`
}

type endpointsResponse struct {
	Endpoints []*models.Endpoint `json:"endpoints"`
}

type statusResponse struct {
	Status string `json:"status"`
}
