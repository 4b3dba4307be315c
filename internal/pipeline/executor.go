package pipeline

import (
	"context"

	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

// Executor drives the browser on behalf of the execution stage. A session is
// owned by one run; its logs are not safe to share across concurrent runs.
type Executor interface {
	Execute(ctx context.Context, instruction string) (traffic.ActionResult, error)
	// DrainAuditLog and DrainNetworkLog return entries recorded since the
	// previous drain.
	DrainAuditLog() []traffic.AuditEntry
	DrainNetworkLog() []traffic.NetworkEntry
	// Reset clears buffered logs between independent runs.
	Reset()
}
