//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/objective"
	"github.com/GoSim-25-26J-441/serving-profiler/internal/profiled"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// daemon serves one session store over real HTTP and gRPC listeners
type daemon struct {
	http   *httptest.Server
	client *profiled.Client
}

func startDaemon(t *testing.T) *daemon {
	t.Helper()
	metrics := profiled.NewMetrics()
	store := profiled.NewSessionStore(metrics)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(metrics.UnaryServerInterceptor()))
	profiled.RegisterSearchServiceServer(grpcServer, profiled.NewSearchGRPCServer(store))
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.GracefulStop)

	httpServer := httptest.NewServer(profiled.NewHTTPServer(store, metrics).Handler())
	t.Cleanup(httpServer.Close)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &daemon{http: httpServer, client: profiled.NewClient(conn)}
}

func (d *daemon) request(t *testing.T, method, path, contentType string, body []byte, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, d.http.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := d.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil && len(data) > 0 && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("invalid json from %s %s: %v (%s)", method, path, err, data)
		}
	}
	return resp.StatusCode
}

// fakeServer answers for a model server whose latency grows with concurrency
// and whose tuned variants outperform the default
func fakeServer(rc models.RunConfig) []*models.Measurement {
	c := float64(rc.Concurrency())
	gain := 1.0
	if !rc.IsDefault() {
		gain = 1.5
	}
	out := make([]*models.Measurement, 0, len(rc.Models))
	for _, m := range rc.Models {
		out = append(out, models.NewMeasurement(m.ModelName, map[string]float64{
			objective.MetricThroughput: c * 4 * gain,
			objective.MetricLatencyP99: c * 3,
		}))
	}
	return out
}

func TestIntegration_ProfileSearchAcrossTransports(t *testing.T) {
	d := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	profileYAML, err := os.ReadFile(filepath.Join("..", "..", "config", "profile.yaml"))
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}

	var created profiled.SessionResponse
	if code := d.request(t, http.MethodPost, "/v1/sessions", "application/yaml", profileYAML, &created); code != http.StatusCreated {
		t.Fatalf("create session: status %d", code)
	}
	id := created.Session.ID
	if len(created.Session.Models) != 2 {
		t.Fatalf("expected 2 models, got %v", created.Session.Models)
	}

	// proposals come from gRPC, measurements go back over HTTP
	proposals := 0
	for {
		p, ok, err := d.client.NextConfig(ctx, id)
		if err != nil {
			t.Fatalf("NextConfig after %d proposals: %v", proposals, err)
		}
		if !ok {
			break
		}
		proposals++
		if proposals > 5000 {
			t.Fatalf("search did not terminate")
		}
		if p.Seq != proposals {
			t.Fatalf("proposal seq = %d, want %d", p.Seq, proposals)
		}
		if p.RunConfig.Concurrency() <= 0 {
			t.Fatalf("proposal %d has concurrency %d", p.Seq, p.RunConfig.Concurrency())
		}

		body, err := json.Marshal(profiled.ReportMeasurementRequest{Measurements: fakeServer(p.RunConfig)})
		if err != nil {
			t.Fatalf("marshal report: %v", err)
		}
		var report profiled.ReportMeasurementResponse
		if code := d.request(t, http.MethodPost, "/v1/sessions/"+id+"/measurements", "application/json", body, &report); code != http.StatusOK {
			t.Fatalf("report proposal %d: status %d", p.Seq, code)
		}
		if report.Summary.Seq != p.Seq {
			t.Fatalf("report seq = %d, want %d", report.Summary.Seq, p.Seq)
		}
	}
	if proposals == 0 {
		t.Fatalf("expected at least one proposal")
	}

	info, err := d.client.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if info.State != "done" {
		t.Fatalf("state = %q, want done", info.State)
	}
	if info.Proposals != proposals {
		t.Fatalf("session counted %d proposals, client saw %d", info.Proposals, proposals)
	}

	for _, model := range []string{"resnet50", "bert_base"} {
		var res profiled.ResultsResponse
		if code := d.request(t, http.MethodGet, "/v1/sessions/"+id+"/results?model="+model, "", nil, &res); code != http.StatusOK {
			t.Fatalf("results for %s: status %d", model, code)
		}
		if len(res.Results) == 0 {
			t.Fatalf("no results for %s", model)
		}
		if len(res.Results) > 3 {
			t.Fatalf("results for %s exceed num_configs_per_model: %d", model, len(res.Results))
		}
	}

	var metricsBody []byte
	req, _ := http.NewRequest(http.MethodGet, d.http.URL+"/metrics", nil)
	resp, err := d.http.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	metricsBody, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		"profiler_active_sessions 1",
		`profiler_grpc_requests_total{code="OK",method="/profiler.v1.SearchService/NextConfig"}`,
		`profiler_http_requests_total{method="POST",path="/v1/sessions/{sessionID}/measurements",status="200"}`,
	} {
		if !strings.Contains(string(metricsBody), want) {
			t.Errorf("metrics missing %s", want)
		}
	}

	if err := d.client.DeleteSession(ctx, id); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if code := d.request(t, http.MethodGet, "/v1/sessions/"+id, "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("deleted session: status %d, want 404", code)
	}
}

func TestIntegration_SessionsStayIsolated(t *testing.T) {
	d := startDaemon(t)
	ctx := context.Background()

	const profileYAML = `
run_config_search:
  max_concurrency: 8
  max_model_batch_size: 1
  max_instance_count: 1
profile_models:
  - name: m
`
	a, err := d.client.CreateSession(ctx, profileYAML)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	b, err := d.client.CreateSession(ctx, profileYAML)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// a protocol violation fails only the offending session
	if _, _, err := d.client.NextConfig(ctx, a.ID); err != nil {
		t.Fatalf("NextConfig: %v", err)
	}
	if _, _, err := d.client.NextConfig(ctx, a.ID); err == nil {
		t.Fatalf("expected a protocol violation for a second unmeasured proposal")
	}
	if code := d.request(t, http.MethodPost, "/v1/sessions/"+a.ID+"/next", "", nil, nil); code != http.StatusConflict {
		t.Fatalf("failed session next: status %d, want 409", code)
	}

	p, ok, err := d.client.NextConfig(ctx, b.ID)
	if err != nil || !ok {
		t.Fatalf("NextConfig on healthy session: ok=%v err=%v", ok, err)
	}
	if _, err := d.client.ReportMeasurement(ctx, b.ID, fakeServer(p.RunConfig)); err != nil {
		t.Fatalf("ReportMeasurement on healthy session: %v", err)
	}
}
