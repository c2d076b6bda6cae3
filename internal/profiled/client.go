package profiled

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/utils"
)

const defaultReadAttempts = 3

// Client calls profiler.v1.SearchService over a gRPC connection.
// Read-only calls are retried while the server is unavailable.
type Client struct {
	conn         grpc.ClientConnInterface
	backoff      utils.BackoffStrategy
	readAttempts int
}

// NewClient creates a client on an established connection
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{
		conn:         conn,
		backoff:      utils.NewExponentialBackoff(50*time.Millisecond, 2*time.Second, 2.0, true),
		readAttempts: defaultReadAttempts,
	}
}

// WithRetry overrides the retry policy of read-only calls
func (c *Client) WithRetry(strategy utils.BackoffStrategy, attempts int) *Client {
	c.backoff = strategy
	c.readAttempts = attempts
	return c
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

func unavailable(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// CreateSession starts a search for a YAML profile
func (c *Client) CreateSession(ctx context.Context, profileYAML string) (SessionInfo, error) {
	var out SessionResponse
	err := c.invoke(ctx, "CreateSession", CreateSessionRequest{ProfileYAML: profileYAML}, &out)
	return out.Session, err
}

// NextConfig pulls the next proposal; ok is false once the search is exhausted
func (c *Client) NextConfig(ctx context.Context, sessionID string) (*Proposal, bool, error) {
	var out NextConfigResponse
	if err := c.invoke(ctx, "NextConfig", SessionRequest{SessionID: sessionID}, &out); err != nil {
		return nil, false, err
	}
	return out.Proposal, !out.Done, nil
}

// ReportMeasurement reports the measurements of the outstanding proposal
func (c *Client) ReportMeasurement(ctx context.Context, sessionID string, measurements []*models.Measurement) (ReportSummary, error) {
	var out ReportMeasurementResponse
	err := c.invoke(ctx, "ReportMeasurement", ReportMeasurementRequest{
		SessionID:    sessionID,
		Measurements: measurements,
	}, &out)
	return out.Summary, err
}

// GetSession returns a snapshot of a session
func (c *Client) GetSession(ctx context.Context, sessionID string) (SessionInfo, error) {
	var out SessionResponse
	err := utils.Retry(ctx, c.backoff, c.readAttempts, unavailable, func() error {
		return c.invoke(ctx, "GetSession", SessionRequest{SessionID: sessionID}, &out)
	})
	return out.Session, err
}

// DeleteSession removes a session
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	var out DeleteSessionResponse
	return c.invoke(ctx, "DeleteSession", SessionRequest{SessionID: sessionID}, &out)
}
