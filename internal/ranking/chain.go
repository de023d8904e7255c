package ranking

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Values holds the named figures of one calculation.
type Values map[string]decimal.Decimal

// Float returns a figure as float64, 0 when absent.
func (v Values) Float(name string) float64 {
	return v[name].InexactFloat64()
}

// Floats converts every figure.
func (v Values) Floats() map[string]float64 {
	out := make(map[string]float64, len(v))
	for k, d := range v {
		out[k] = d.InexactFloat64()
	}
	return out
}

// Step computes Output from Inputs.
type Step struct {
	Output  string
	Inputs  []string
	Formula string
	Compute func(in []decimal.Decimal) decimal.Decimal
}

// Chain is an ordered dataflow of steps; each step may read the seeds and
// the outputs of earlier steps.
type Chain []Step

// Validate checks that every input is seeded or produced earlier.
func (c Chain) Validate(seeds ...string) error {
	known := make(map[string]bool, len(seeds)+len(c))
	for _, s := range seeds {
		known[s] = true
	}
	for _, st := range c {
		for _, in := range st.Inputs {
			if !known[in] {
				return fmt.Errorf("step %q reads %q before it is computed", st.Output, in)
			}
		}
		known[st.Output] = true
	}
	return nil
}

// Run evaluates every step in order, writing outputs into v.
func (c Chain) Run(v Values) error {
	for _, st := range c {
		args := make([]decimal.Decimal, len(st.Inputs))
		for i, in := range st.Inputs {
			d, ok := v[in]
			if !ok {
				return fmt.Errorf("step %q: input %q not available", st.Output, in)
			}
			args[i] = d
		}
		v[st.Output] = st.Compute(args)
	}
	return nil
}

// Outputs lists the step outputs in order.
func (c Chain) Outputs() []string {
	out := make([]string, len(c))
	for i, st := range c {
		out[i] = st.Output
	}
	return out
}

// Describe renders the chain as "output = formula" lines.
func (c Chain) Describe() []string {
	lines := make([]string, len(c))
	for i, st := range c {
		lines[i] = st.Output + " = " + st.Formula
	}
	return lines
}

// Plus is a + b.
func Plus(out, a, b string) Step {
	return Step{Output: out, Inputs: []string{a, b}, Formula: a + " + " + b,
		Compute: func(in []decimal.Decimal) decimal.Decimal { return in[0].Add(in[1]) }}
}

// Minus is a - b.
func Minus(out, a, b string) Step {
	return Step{Output: out, Inputs: []string{a, b}, Formula: a + " - " + b,
		Compute: func(in []decimal.Decimal) decimal.Decimal { return in[0].Sub(in[1]) }}
}

// Greater is max(a, b).
func Greater(out, a, b string) Step {
	return Step{Output: out, Inputs: []string{a, b}, Formula: "max(" + a + ", " + b + ")",
		Compute: func(in []decimal.Decimal) decimal.Decimal { return decimal.Max(in[0], in[1]) }}
}

// Rate is in × rate.
func Rate(out, in string, rate decimal.Decimal) Step {
	return Step{Output: out, Inputs: []string{in}, Formula: in + " × " + rate.String(),
		Compute: func(args []decimal.Decimal) decimal.Decimal { return args[0].Mul(rate) }}
}
