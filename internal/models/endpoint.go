// Package models defines the records shared by the index, the scanners and
// the provider: endpoints, documents, derived elements and paging cursors.
package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/timex"
)

// EndpointType selects the source implementation used to scan an endpoint.
type EndpointType string

const (
	EndpointAASAPI     EndpointType = "AAS_API"
	EndpointOPCUA      EndpointType = "OPC_UA"
	EndpointWebDAV     EndpointType = "WebDAV"
	EndpointFileSystem EndpointType = "FileSystem"
	EndpointS3         EndpointType = "S3"
)

// ScheduleType is the scan policy of an endpoint.
type ScheduleType string

const (
	ScheduleEvery    ScheduleType = "every"
	ScheduleOnce     ScheduleType = "once"
	ScheduleManual   ScheduleType = "manual"
	ScheduleDisabled ScheduleType = "disabled"
)

// Schedule describes when an endpoint is scanned. Values holds the interval
// for ScheduleEvery; only the first value is used.
type Schedule struct {
	Type   ScheduleType     `json:"type"`
	Values []timex.Duration `json:"values,omitempty"`
}

// Interval returns the configured interval of an "every" schedule, or zero.
func (s *Schedule) Interval() time.Duration {
	if s == nil || len(s.Values) == 0 {
		return 0
	}
	return s.Values[0].Duration
}

// Equal reports whether two schedules describe the same policy.
func (s *Schedule) Equal(o *Schedule) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Type != o.Type || len(s.Values) != len(o.Values) {
		return false
	}
	for i := range s.Values {
		if s.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// Endpoint is a registered source of AAS documents. Name is globally unique.
type Endpoint struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Type     EndpointType      `json:"type"`
	Version  string            `json:"version,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Schedule *Schedule         `json:"schedule,omitempty"`
}

// ScheduleType returns the endpoint's policy, defaulting to "every".
func (e *Endpoint) ScheduleType() ScheduleType {
	if e.Schedule == nil || e.Schedule.Type == "" {
		return ScheduleEvery
	}
	return e.Schedule.Type
}

// Validate checks the fields every endpoint must carry.
func (e *Endpoint) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is required", common.ErrInvalidEndpoint)
	}
	// names are joined to ids with NUL in store keys
	if strings.ContainsRune(e.Name, 0) {
		return fmt.Errorf("%w: name contains a NUL character", common.ErrInvalidEndpoint)
	}
	if e.URL == "" {
		return fmt.Errorf("%w: url is required", common.ErrInvalidEndpoint)
	}
	if _, err := url.Parse(e.URL); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidEndpoint, err)
	}
	switch e.Type {
	case EndpointAASAPI, EndpointOPCUA, EndpointWebDAV, EndpointFileSystem, EndpointS3:
	default:
		return fmt.Errorf("%w: unknown type %q", common.ErrInvalidEndpoint, e.Type)
	}
	if e.Schedule != nil {
		switch e.Schedule.Type {
		case ScheduleEvery, ScheduleOnce, ScheduleManual, ScheduleDisabled, "":
		default:
			return fmt.Errorf("%w: unknown schedule %q", common.ErrInvalidEndpoint, e.Schedule.Type)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (e *Endpoint) Clone() *Endpoint {
	c := *e
	if e.Headers != nil {
		c.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			c.Headers[k] = v
		}
	}
	if e.Schedule != nil {
		s := *e.Schedule
		s.Values = append([]timex.Duration(nil), e.Schedule.Values...)
		c.Schedule = &s
	}
	return &c
}
