// Package sweep expands a parameter grid into run configurations and drives
// one engine run per configuration over a shared feature cache.
package sweep

import (
	"fmt"
	"sort"
	"strings"

	"kepler/internal/feature"
)

// StrategyAxis names one strategy and the values to sweep for each of its
// parameters.
type StrategyAxis struct {
	Name   string               `yaml:"name"`
	Params map[string][]float64 `yaml:"params"`
}

// Grid is a cartesian parameter grid: every strategy/parameter combination
// crossed with every feature window combination. Callers that want an
// explicit list of configurations can skip Grid and hand RunConfigs straight
// to the Coordinator.
type Grid struct {
	Strategies   []StrategyAxis `yaml:"strategies"`
	ShortWindows []int          `yaml:"short_windows"`
	LongWindows  []int          `yaml:"long_windows"`
	VolWindows   []int          `yaml:"vol_windows"`
}

// RunConfig is one point of the grid. Tag is the canonical rendering of the
// full configuration and travels with the RunResult so performance can be
// mapped back to parameters.
type RunConfig struct {
	Tag            string
	Strategy       string
	StrategyParams map[string]float64
	Feature        feature.Params
}

// Expand produces the cartesian product in deterministic order: strategies
// as listed, parameter names sorted, values as listed, then feature windows
// as listed.
func (g Grid) Expand() []RunConfig {
	var out []RunConfig
	for _, axis := range g.Strategies {
		for _, params := range expandParams(axis.Params) {
			for _, short := range g.ShortWindows {
				for _, long := range g.LongWindows {
					for _, vol := range g.VolWindows {
						fp := feature.Params{ShortWindow: short, LongWindow: long, VolWindow: vol}
						out = append(out, RunConfig{
							Tag:            configTag(axis.Name, params, fp),
							Strategy:       axis.Name,
							StrategyParams: params,
							Feature:        fp,
						})
					}
				}
			}
		}
	}
	return out
}

// expandParams enumerates every combination of parameter values, iterating
// names in sorted order for determinism.
func expandParams(axes map[string][]float64) []map[string]float64 {
	names := make([]string, 0, len(axes))
	for name := range axes {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []map[string]float64{{}}
	for _, name := range names {
		values := axes[name]
		if len(values) == 0 {
			continue
		}
		next := make([]map[string]float64, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				extended := make(map[string]float64, len(combo)+1)
				for k, cv := range combo {
					extended[k] = cv
				}
				extended[name] = v
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}

// configTag renders the canonical configuration tag.
func configTag(strat string, params map[string]float64, fp feature.Params) string {
	var b strings.Builder
	fmt.Fprintf(&b, "strategy=%s", strat)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "|%s=%g", name, params[name])
	}

	fmt.Fprintf(&b, "|short=%d|long=%d|vol=%d", fp.ShortWindow, fp.LongWindow, fp.VolWindow)
	return b.String()
}
