package internal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Evaluator returns the first rule that matches a packet view, or nil.
type Evaluator interface {
	Evaluate(v PacketView) *Rule
}

var _ Evaluator = (*RuleList)(nil)

// RuleList is an ordered list of rules evaluated first match wins.
//
// The list holds no lock. Finish loading before the first Evaluate; after
// that Evaluate may be called from any number of goroutines.
type RuleList struct {
	rules []*Rule
}

func NewRuleList() *RuleList {
	return &RuleList{}
}

func (l *RuleList) Append(r *Rule) {
	l.rules = append(l.rules, r)
}

// AddFromText parses line and appends the rule. The rule is returned so the
// caller can attach metadata.
func (l *RuleList) AddFromText(line string) (*Rule, error) {
	r, err := ParseRule(line)
	if err != nil {
		return nil, err
	}
	l.Append(r)
	return r, nil
}

// LoadLines parses every line as a rule. On the first error nothing is
// appended and the error is returned as a *LoadError.
func (l *RuleList) LoadLines(lines []string) error {
	parsed := make([]*Rule, 0, len(lines))
	for i, line := range lines {
		r, err := ParseRule(line)
		if err != nil {
			return &LoadError{Line: i + 1, Text: line, Err: err}
		}
		parsed = append(parsed, r)
	}
	l.rules = append(l.rules, parsed...)
	return nil
}

// LoadFromScanner reads a rules file. Everything from '#' to the end of a
// line is a comment; lines left empty are skipped. Each rule gets "Line N" as
// metadata, N being its physical line number. On the first error nothing is
// appended.
func (l *RuleList) LoadFromScanner(sc *bufio.Scanner) error {
	var (
		parsed []*Rule
		n      int
	)
	for sc.Scan() {
		n++
		raw := sc.Text()
		line := raw
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r, err := ParseRule(line)
		if err != nil {
			return &LoadError{Line: n, Text: raw, Err: err}
		}
		r.SetMetadata(fmt.Sprintf("Line %d", n))
		parsed = append(parsed, r)
		Logger.Load().Debug().Int("line", n).Str("rule", r.String()).Msg("rule loaded")
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read rules after line %d: %w", n, err)
	}

	l.rules = append(l.rules, parsed...)
	return nil
}

func (l *RuleList) LoadFromReader(r io.Reader) error {
	return l.LoadFromScanner(bufio.NewScanner(r))
}

// LoadFile loads a rules file with LoadFromScanner.
func (l *RuleList) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	if err := l.LoadFromReader(f); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	Logger.Load().Info().Str("path", path).Int("rules", l.Len()).Msg("rules file loaded")
	return nil
}

// Evaluate returns the earliest rule matching v, or nil when none does.
// What to do with an unmatched packet is up to the caller.
func (l *RuleList) Evaluate(v PacketView) *Rule {
	for _, r := range l.rules {
		if r.Matches(v) {
			return r
		}
	}
	return nil
}

func (l *RuleList) Len() int { return len(l.rules) }

// Rules returns the rules in evaluation order.
func (l *RuleList) Rules() []*Rule {
	out := make([]*Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

// String renders one rule per line.
func (l *RuleList) String() string {
	var b strings.Builder
	for _, r := range l.rules {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}
