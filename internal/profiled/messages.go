package profiled

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/results"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// Request and response bodies are shared by the gRPC and HTTP surfaces. Over
// gRPC they travel as google.protobuf.Struct values with the same JSON field names.

// CreateSessionRequest starts a session for a YAML profile
type CreateSessionRequest struct {
	ProfileYAML string `json:"profile_yaml"`
}

// SessionRequest names the session a call applies to
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SessionResponse carries a session snapshot
type SessionResponse struct {
	Session SessionInfo `json:"session"`
}

// ListSessionsResponse lists sessions, oldest first
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// NextConfigResponse holds the next proposal, or Done once the search is exhausted
type NextConfigResponse struct {
	Done     bool      `json:"done"`
	Proposal *Proposal `json:"proposal,omitempty"`
}

// ReportMeasurementRequest reports the measurements of the outstanding proposal; null entries are absent runs
type ReportMeasurementRequest struct {
	SessionID    string                `json:"session_id"`
	Measurements []*models.Measurement `json:"measurements"`
}

// ReportMeasurementResponse summarizes how a report was recorded
type ReportMeasurementResponse struct {
	Summary ReportSummary `json:"summary"`
}

// ResultsResponse holds the best results of a session
type ResultsResponse struct {
	SessionID string           `json:"session_id"`
	Results   []results.Result `json:"results"`
}

// DeleteSessionResponse acknowledges a deleted session
type DeleteSessionResponse struct {
	Deleted bool `json:"deleted"`
}

// toStruct converts a message into a protobuf Struct through its JSON form
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return out, nil
}

// fromStruct decodes a protobuf Struct into a message
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
