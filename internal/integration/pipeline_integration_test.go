package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/awmpietro/golang-api-surface-inference/internal/app"
	"github.com/awmpietro/golang-api-surface-inference/internal/config"
	"github.com/awmpietro/golang-api-surface-inference/internal/pipeline"
)

func TestGraphFile_Service_Integration(t *testing.T) {
	cfg := config.Defaults()
	cfg.GraphFile = filepath.Join("testdata", "retry.dot")
	cfg.ExecutorBaseURL = "https://shop.test"

	rt, err := app.Bootstrap(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	view, trace, err := rt.Service.StartRun(context.Background(), app.RunRequest{
		Description: "login as admin",
		Domain:      "shop.test",
		Debug:       true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if view.State != pipeline.StateDone {
		t.Fatalf("expected done, got %s (%s)", view.State, view.Error)
	}
	if view.IterationCount != 3 {
		t.Fatalf("expected 3 iterations, got %d", view.IterationCount)
	}
	if len(view.CorrelatedLog) != len(view.AuditLog) {
		t.Fatalf("expected one correlated entry per audit entry, got %d/%d", len(view.CorrelatedLog), len(view.AuditLog))
	}
	if len(view.Endpoints) != 1 {
		t.Fatalf("expected one endpoint, got %#v", view.Endpoints)
	}
	ep := view.Endpoints[0]
	if ep.Method != "POST" || ep.PathPattern != "/api/login" || ep.CallCount != 3 {
		t.Fatalf("unexpected endpoint %#v", ep)
	}

	if trace == nil || trace.Terminated != pipeline.TerminatedEnd {
		t.Fatalf("expected trace terminated at end, got %#v", trace)
	}
	if got := len(trace.VisitedPath); got != 7 {
		t.Fatalf("expected 7 visited nodes, got %v", trace.VisitedPath)
	}
}

func TestGraphFile_RejectsMissingFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.GraphFile = filepath.Join("testdata", "missing.dot")

	if _, err := app.Bootstrap(cfg, nil); err == nil {
		t.Fatal("expected bootstrap error for missing graph file")
	}
}
