package tracker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clustervision/lunactl/internal/luna"
)

// Formatter turns one 200 status answer into the lines to display.
type Formatter func(resp *luna.Response) []string

// MessageLines splits the message field on the delimiter and returns every
// non-empty segment in order.
func MessageLines(resp *luna.Response) []string {
	return luna.SplitMessage(resp.Message())
}

// ControlLines formats the structured answer of a bulk control action. The
// control section is either keyed by system or directly by outcome:
//
//	{"control": {"power": {"on": "node[002-003]", "failed": {"node001": "timeout"}}}}
//	{"control": {"on": "node[002-003]"}}
//
// Each outcome becomes one line, e.g. "failed: node001 (timeout)". Outcomes
// are sorted by name. Message segments, if any, come first.
func ControlLines(system string) Formatter {
	return func(resp *luna.Response) []string {
		lines := MessageLines(resp)
		if resp == nil || resp.Body == nil {
			return lines
		}
		section, ok := resp.Body["control"].(map[string]any)
		if !ok {
			return lines
		}
		if inner, ok := section[system].(map[string]any); ok {
			section = inner
		}

		outcomes := make([]string, 0, len(section))
		for outcome := range section {
			if outcome == "request_id" {
				continue
			}
			outcomes = append(outcomes, outcome)
		}
		sort.Strings(outcomes)

		for _, outcome := range outcomes {
			if targets := describeTargets(section[outcome]); targets != "" {
				lines = append(lines, fmt.Sprintf("%s: %s", outcome, targets))
			}
		}
		return lines
	}
}

func describeTargets(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := describeTargets(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if hostlist, ok := val["hostlist"].(string); ok && len(val) == 1 {
			return strings.TrimSpace(hostlist)
		}
		targets := make([]string, 0, len(val))
		for target := range val {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		parts := make([]string, 0, len(targets))
		for _, target := range targets {
			detail := describeTargets(val[target])
			switch detail {
			case "", "true", target:
				parts = append(parts, target)
			default:
				parts = append(parts, fmt.Sprintf("%s (%s)", target, detail))
			}
		}
		return strings.Join(parts, ", ")
	case bool:
		if val {
			return "true"
		}
		return ""
	case float64:
		return fmt.Sprintf("%g", val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
