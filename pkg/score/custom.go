package score

import (
	"fmt"
	"math"

	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Func is a host-supplied evaluator. It must be deterministic and must not
// retain in beyond the call. An error, a panic or a non-finite result fails
// only the criterion that invoked it.
type Func func(in Input) (float64, error)

// Input is what a custom Func sees.
type Input struct {
	Buffer   *textbuf.Buffer
	Stats    textbuf.Stats
	Matches  []types.Match
	Entities []types.Entity
	Args     map[string]float64
}

type customEvaluator struct {
	fn   Func
	args map[string]float64
}

func newCustomEvaluator(c types.Criterion, funcs map[string]Func) evaluator {
	name := c.Params.Function
	if name == "" {
		return paramError(c, "custom criterion requires function")
	}
	fn, ok := funcs[name]
	if !ok || fn == nil {
		return paramError(c, "custom function %q is not registered", name)
	}
	args := make(map[string]float64, len(c.Params.Args))
	for k, v := range c.Params.Args {
		args[k] = v
	}
	return &customEvaluator{fn: fn, args: args}
}

func (c *customEvaluator) evaluate(ctx *evalContext) (float64, error) {
	entities, err := ctx.entityList()
	if err != nil {
		return math.NaN(), err
	}
	args := make(map[string]float64, len(c.args))
	for k, v := range c.args {
		args[k] = v
	}
	return c.fn(Input{
		Buffer:   ctx.buf,
		Stats:    ctx.bufferStats(),
		Matches:  ctx.feats.Matches,
		Entities: entities,
		Args:     args,
	})
}

func panicError(r interface{}) error {
	return fmt.Errorf("evaluator panicked: %v", r)
}
