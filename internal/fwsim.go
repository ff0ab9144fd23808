package internal

import (
	"context"
)

// CaseResult is the outcome of one suite case. Rule is nil when no rule
// matched and Action then holds the suite's default action.
type CaseResult struct {
	Case   Case
	Rule   *Rule
	Action Action
	Passed bool
}

type Report struct {
	Results []CaseResult
	Passed  int
	Failed  int
}

func (r *Report) OK() bool { return r.Failed == 0 }

// Verdict evaluates v and falls back to defaultAction when no rule matches.
func Verdict(ev Evaluator, v PacketView, defaultAction Action) (*Rule, Action) {
	if r := ev.Evaluate(v); r != nil {
		return r, r.Action()
	}
	return nil, defaultAction
}

// Run loads the suite's rule list and checks every case against it. A rule
// list that fails to load fails the whole run.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	rules, err := cfg.RuleList()
	if err != nil {
		return nil, err
	}
	Logger.Load().Info().Int("rules", rules.Len()).Int("cases", len(cfg.Cases)).Msg("running suite")

	report := &Report{Results: make([]CaseResult, 0, len(cfg.Cases))}
	for _, c := range cfg.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := CaseResult{Case: c}
		res.Rule, res.Action = Verdict(rules, c.Packet, cfg.DefaultAction)
		res.Passed = res.Action == c.Expect
		if c.ExpectRule != "" && (res.Rule == nil || res.Rule.Metadata() != c.ExpectRule) {
			res.Passed = false
		}

		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
			Logger.Load().Debug().Str("case", c.Name).Stringer("got", res.Action).Stringer("want", c.Expect).Msg("case failed")
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}
