// Package apidto holds the JSON bodies shared by the HTTP and Lambda
// transports.
package apidto

import (
	"github.com/awmpietro/golang-api-surface-inference/internal/app"
	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint"
	"github.com/awmpietro/golang-api-surface-inference/internal/executor"
	"github.com/awmpietro/golang-api-surface-inference/internal/pipeline"
	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

type RunRequest struct {
	Description string          `json:"description"`
	Domain      string          `json:"domain"`
	Steps       []executor.Step `json:"steps,omitempty"`
	Debug       bool            `json:"debug,omitempty"`
}

func (r RunRequest) ToApp() app.RunRequest {
	return app.RunRequest{
		Description: r.Description,
		Domain:      r.Domain,
		Steps:       r.Steps,
		Debug:       r.Debug,
	}
}

type RunResponse struct {
	Run   pipeline.RunView `json:"run"`
	Trace *pipeline.Trace  `json:"trace,omitempty"`
}

type InferRequest struct {
	NetworkRequests []traffic.NetworkEntry `json:"network_requests"`
}

type InferResponse struct {
	Endpoints []endpoint.Pattern `json:"endpoints"`
	Stats     endpoint.Stats     `json:"stats"`
}

func NewInferResponse(table endpoint.Table, stats endpoint.Stats) InferResponse {
	return InferResponse{Endpoints: table.Patterns(), Stats: stats}
}

func ErrorBody(msg string, err error) map[string]any {
	body := map[string]any{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	return body
}
