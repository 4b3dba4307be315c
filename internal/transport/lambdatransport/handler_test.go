package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/awmpietro/golang-api-surface-inference/internal/app"
	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint"
	"github.com/awmpietro/golang-api-surface-inference/internal/pipeline"
	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

type svcStub struct {
	startRunFn func(ctx context.Context, req app.RunRequest) (pipeline.RunView, *pipeline.Trace, error)
	inferFn    func(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error)
}

func (s *svcStub) StartRun(ctx context.Context, req app.RunRequest) (pipeline.RunView, *pipeline.Trace, error) {
	return s.startRunFn(ctx, req)
}

func (s *svcStub) InferEndpoints(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error) {
	return s.inferFn(network)
}

func request(method, path, body string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{RawPath: path, Body: body}
	req.RequestContext.HTTP.Method = method
	return req
}

func TestHandler_StartRun_InvalidJSON(t *testing.T) {
	h := NewHandler(&svcStub{})

	resp, err := h.Handle(context.Background(), request("POST", "/runs", "{"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestHandler_StartRun_DebugResponseIncludesTrace(t *testing.T) {
	h := NewHandler(&svcStub{
		startRunFn: func(_ context.Context, req app.RunRequest) (pipeline.RunView, *pipeline.Trace, error) {
			if !req.Debug {
				t.Fatalf("expected debug flag to be forwarded")
			}
			return pipeline.RunView{ID: "r1", State: pipeline.StateDone}, &pipeline.Trace{StartNode: "start"}, nil
		},
	})

	resp, err := h.Handle(context.Background(), request("POST", "/runs", `{"description":"login","debug":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatal(err)
	}
	if out["trace"] == nil {
		t.Fatalf("expected trace in response")
	}
}

func TestHandler_StartRun_ServiceErrorIsBadRequest(t *testing.T) {
	h := NewHandler(&svcStub{
		startRunFn: func(context.Context, app.RunRequest) (pipeline.RunView, *pipeline.Trace, error) {
			return pipeline.RunView{}, nil, app.ErrDescriptionRequired
		},
	})

	resp, _ := h.Handle(context.Background(), request("POST", "/runs", `{}`))
	if resp.StatusCode != 400 {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestHandler_InferEndpoints_Base64Body(t *testing.T) {
	h := NewHandler(&svcStub{
		inferFn: func(network []traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error) {
			table, stats := endpoint.InferWithStats(network)
			return table, stats, nil
		},
	})

	body := `{"network_requests":[{"url":"https://api.test/orders/7?page=2","method":"GET"}]}`
	req := request("POST", "/endpoints/infer", base64.StdEncoding.EncodeToString([]byte(body)))
	req.IsBase64Encoded = true

	resp, err := h.Handle(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	var out struct {
		Endpoints []endpoint.Pattern `json:"endpoints"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Endpoints) != 1 || out.Endpoints[0].PathPattern != "/orders/{id}?page={page}" {
		t.Fatalf("unexpected endpoints: %#v", out.Endpoints)
	}
}

func TestHandler_InferEndpoints_ServiceError(t *testing.T) {
	h := NewHandler(&svcStub{
		inferFn: func([]traffic.NetworkEntry) (endpoint.Table, endpoint.Stats, error) {
			return nil, endpoint.Stats{}, fmt.Errorf("cache down")
		},
	})

	resp, _ := h.Handle(context.Background(), request("POST", "/endpoints/infer", `{}`))
	if resp.StatusCode != 400 {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestHandler_Routing(t *testing.T) {
	h := NewHandler(&svcStub{})

	cases := []struct {
		method, path string
		want         int
	}{
		{"GET", "/healthz", 200},
		{"GET", "/runs", 405},
		{"GET", "/endpoints/infer", 405},
		{"POST", "/unknown", 404},
	}
	for _, c := range cases {
		resp, err := h.Handle(context.Background(), request(c.method, c.path, ""))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != c.want {
			t.Fatalf("%s %s: expected %d, got %d", c.method, c.path, c.want, resp.StatusCode)
		}
	}
}

func TestRequestPath_StripsStageAndTrailingSlash(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{}
	req.RequestContext.Stage = "prod"
	req.RequestContext.HTTP.Path = "/prod/runs/"

	if got := requestPath(req); got != "/runs" {
		t.Fatalf("expected /runs, got %q", got)
	}
}
