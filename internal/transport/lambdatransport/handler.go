package lambdatransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/awmpietro/golang-api-surface-inference/internal/app"
	"github.com/awmpietro/golang-api-surface-inference/internal/transport/apidto"
)

type Handler struct {
	svc app.API
}

func NewHandler(svc app.API) *Handler {
	return &Handler{svc: svc}
}

// Handle routes an API Gateway v2 request on method and path.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := req.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodPost
	}

	switch path := requestPath(req); {
	case path == "/healthz" && method == http.MethodGet:
		return jsonResp(http.StatusOK, map[string]string{"status": "ok"}), nil
	case path == "/runs":
		if method != http.MethodPost {
			return jsonResp(http.StatusMethodNotAllowed, apidto.ErrorBody("method not allowed", nil)), nil
		}
		return h.StartRun(ctx, req)
	case path == "/endpoints/infer":
		if method != http.MethodPost {
			return jsonResp(http.StatusMethodNotAllowed, apidto.ErrorBody("method not allowed", nil)), nil
		}
		return h.InferEndpoints(ctx, req)
	default:
		return jsonResp(http.StatusNotFound, apidto.ErrorBody("not found", nil)), nil
	}
}

func (h *Handler) StartRun(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	var in apidto.RunRequest
	if resp, ok := decode(req, &in); !ok {
		return resp, nil
	}

	view, trace, err := h.svc.StartRun(ctx, in.ToApp())
	if err != nil {
		return jsonResp(http.StatusBadRequest, apidto.ErrorBody("run failed", err)), nil
	}
	return jsonResp(http.StatusOK, apidto.RunResponse{Run: view, Trace: trace}), nil
}

func (h *Handler) InferEndpoints(_ context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	var in apidto.InferRequest
	if resp, ok := decode(req, &in); !ok {
		return resp, nil
	}

	table, stats, err := h.svc.InferEndpoints(in.NetworkRequests)
	if err != nil {
		return jsonResp(http.StatusBadRequest, apidto.ErrorBody("infer failed", err)), nil
	}
	return jsonResp(http.StatusOK, apidto.NewInferResponse(table, stats)), nil
}

func requestPath(req events.APIGatewayV2HTTPRequest) string {
	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}
	if stage := req.RequestContext.Stage; stage != "" && stage != "$default" {
		path = strings.TrimPrefix(path, "/"+stage)
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func decode(req events.APIGatewayV2HTTPRequest, dst any) (events.APIGatewayV2HTTPResponse, bool) {
	body, err := readBody(req)
	if err != nil {
		return jsonResp(http.StatusBadRequest, apidto.ErrorBody("invalid body", err)), false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return jsonResp(http.StatusBadRequest, apidto.ErrorBody("invalid json", err)), false
	}
	return events.APIGatewayV2HTTPResponse{}, true
}

func readBody(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

func jsonResp(status int, body any) events.APIGatewayV2HTTPResponse {
	b, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(b),
	}
}
