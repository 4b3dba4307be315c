package executor

import (
	"context"

	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
)

// Journey runs a fixed list of steps each time the pipeline asks for the run
// description to be executed. Logs are shared with the underlying session.
type Journey struct {
	*Session
	Steps []Step
}

func (s *Session) Journey(steps []Step) *Journey {
	return &Journey{Session: s, Steps: steps}
}

func (j *Journey) Execute(ctx context.Context, instruction string) (traffic.ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return traffic.ActionResult{}, err
	}
	res := j.RunJourney(ctx, j.Steps)
	res.Fields["instruction"] = instruction
	return res, nil
}
