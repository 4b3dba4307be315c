// Package executor provides an in-process browser session that records the
// audit and network logs a real automation backend would capture. It is the
// Action Executor used by the HTTP and Lambda entry points.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

const DefaultBaseURL = "https://example.com"

const (
	ActionInstruction = "instruction"
	ActionNavigate    = "navigate"
	ActionClick       = "click"
	ActionJourney     = "user_journey"
)

// Step is one action of a scripted user journey.
type Step struct {
	Action   string `json:"action"`
	URL      string `json:"url,omitempty"`
	Element  string `json:"element,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// Session is owned by a single run. All methods are safe for concurrent use,
// but interleaving two runs on one session mixes their logs.
type Session struct {
	id      string
	baseURL string
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	audit   []traffic.AuditEntry
	network []traffic.NetworkEntry
}

type Option func(*Session)

func WithBaseURL(base string) Option {
	return func(s *Session) {
		if base != "" {
			s.baseURL = strings.TrimRight(base, "/")
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		baseURL: DefaultBaseURL,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session_id", s.id))
	return s
}

func (s *Session) ID() string { return s.id }

// Execute performs a free-form instruction. Instructions mentioning "login"
// post to the login API; instructions mentioning "navigate" load a page.
func (s *Session) Execute(ctx context.Context, instruction string) (traffic.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return traffic.ActionResult{}, err
	}

	s.logger.Info("executing browser action", zap.String("instruction", instruction))
	at := s.timestamp()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, traffic.AuditEntry{
		Action:    ActionInstruction,
		Params:    map[string]any{"instruction": instruction},
		Timestamp: at,
		Success:   true,
	})

	lower := strings.ToLower(instruction)
	switch {
	case strings.Contains(lower, "login"):
		s.network = append(s.network, traffic.NetworkEntry{
			URL: s.baseURL + "/api/login", Method: "POST", Status: 200, ResponseTimeMs: 150, Timestamp: at,
		})
	case strings.Contains(lower, "navigate"):
		s.network = append(s.network, traffic.NetworkEntry{
			URL: s.baseURL + "/page", Method: "GET", Status: 200, ResponseTimeMs: 100, Timestamp: at,
		})
	}

	return traffic.ActionResult{
		Success:   true,
		Action:    ActionInstruction,
		Fields:    map[string]any{"instruction": instruction},
		Timestamp: at,
	}, nil
}

// Navigate loads a URL. Relative paths are resolved against the base URL.
func (s *Session) Navigate(ctx context.Context, target string) traffic.ActionResult {
	at := s.timestamp()
	params := map[string]any{"url": target}

	if err := ctx.Err(); err != nil {
		return s.fail(ActionNavigate, params, at, err.Error())
	}
	if strings.TrimSpace(target) == "" {
		return s.fail(ActionNavigate, params, at, "url is required")
	}
	if strings.HasPrefix(target, "/") {
		target = s.baseURL + target
		params["url"] = target
	}

	s.mu.Lock()
	s.network = append(s.network, traffic.NetworkEntry{
		URL:            target,
		Method:         "GET",
		Status:         200,
		ResponseTimeMs: 150,
		Timestamp:      at,
		RequestType:    "navigation",
	})
	s.audit = append(s.audit, traffic.AuditEntry{Action: ActionNavigate, Params: params, Timestamp: at, Success: true})
	s.mu.Unlock()

	s.logger.Info("navigated", zap.String("url", target))
	return traffic.ActionResult{Success: true, Action: ActionNavigate, Fields: params, Timestamp: at}
}

func (s *Session) Click(ctx context.Context, element, selector string) traffic.ActionResult {
	at := s.timestamp()
	params := map[string]any{"element": element, "selector": selector}

	if err := ctx.Err(); err != nil {
		return s.fail(ActionClick, params, at, err.Error())
	}
	if selector == "" {
		return s.fail(ActionClick, params, at, "selector is required")
	}

	s.mu.Lock()
	s.audit = append(s.audit, traffic.AuditEntry{Action: ActionClick, Params: params, Timestamp: at, Success: true})
	s.mu.Unlock()

	s.logger.Info("clicked", zap.String("element", element), zap.String("selector", selector))
	return traffic.ActionResult{Success: true, Action: ActionClick, Fields: params, Timestamp: at}
}

// RunJourney executes steps in order and stops at the first failing step.
func (s *Session) RunJourney(ctx context.Context, steps []Step) traffic.ActionResult {
	executed := make([]traffic.ActionResult, 0, len(steps))

	for i, step := range steps {
		var res traffic.ActionResult
		switch step.Action {
		case ActionNavigate:
			res = s.Navigate(ctx, step.URL)
		case ActionClick:
			res = s.Click(ctx, step.Element, step.Selector)
		default:
			res = traffic.ActionResult{
				Success:   false,
				Action:    step.Action,
				Error:     fmt.Sprintf("unsupported action: %s", step.Action),
				Timestamp: s.timestamp(),
			}
		}
		if res.Fields == nil {
			res.Fields = map[string]any{}
		}
		res.Fields["step_number"] = i + 1
		executed = append(executed, res)

		if !res.Success {
			s.logger.Warn("journey step failed", zap.Int("step", i+1), zap.String("error", res.Error))
			break
		}
	}

	ok := true
	for _, r := range executed {
		ok = ok && r.Success
	}

	at := s.timestamp()
	fields := map[string]any{
		"steps":           executed,
		"total_steps":     len(steps),
		"completed_steps": len(executed),
	}

	s.mu.Lock()
	s.audit = append(s.audit, traffic.AuditEntry{
		Action:    ActionJourney,
		Params:    map[string]any{"total_steps": len(steps), "completed_steps": len(executed)},
		Timestamp: at,
		Success:   ok,
	})
	s.mu.Unlock()

	res := traffic.ActionResult{Success: ok, Action: ActionJourney, Fields: fields, Timestamp: at}
	if !ok {
		res.Error = executed[len(executed)-1].Error
	}
	return res
}

// DrainAuditLog returns and clears the audit entries recorded so far.
func (s *Session) DrainAuditLog() []traffic.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.audit
	s.audit = nil
	return out
}

// DrainNetworkLog returns and clears the network entries recorded so far.
func (s *Session) DrainNetworkLog() []traffic.NetworkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.network
	s.network = nil
	return out
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = nil
	s.network = nil
}

func (s *Session) fail(action string, params map[string]any, at, msg string) traffic.ActionResult {
	s.mu.Lock()
	s.audit = append(s.audit, traffic.AuditEntry{Action: action, Params: params, Timestamp: at, Success: false, Error: msg})
	s.mu.Unlock()

	s.logger.Warn("browser action failed", zap.String("action", action), zap.String("error", msg))
	return traffic.ActionResult{Success: false, Action: action, Fields: params, Error: msg, Timestamp: at}
}

func (s *Session) timestamp() string {
	return traffic.FormatTimestamp(s.now())
}
