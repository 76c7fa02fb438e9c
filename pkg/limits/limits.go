package limits

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"mercator-hq/toolgate/pkg/limits/ratelimit"
)

// ToolRule assigns a sliding-window limit to tools whose names match one of
// its patterns, or to requests whose category equals its name.
type ToolRule struct {
	// Name identifies the rule, e.g. "ai_features".
	Name string `yaml:"name" json:"name"`

	// Patterns are case-insensitive substrings matched against tool names.
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Limit is the per-session, per-tool window limit.
	Limit ratelimit.RateLimit `yaml:"limit" json:"limit"`
}

// Limits is the configuration table for all four dimensions.
type Limits struct {
	// SessionGlobal configures the per-session token bucket.
	SessionGlobal ratelimit.RateLimit `yaml:"session_global" json:"session_global"`

	// Tools is the ordered tool rule list. The first rule with a matching
	// pattern wins.
	Tools []ToolRule `yaml:"tools" json:"tools"`

	// DefaultTool names the fallback rule for unmatched tools.
	DefaultTool string `yaml:"default_tool" json:"default_tool"`

	// Categories configures per-session category windows. Categories not
	// listed are unlimited.
	Categories map[string]ratelimit.RateLimit `yaml:"categories" json:"categories"`

	// IPBased configures the per-IP token bucket.
	IPBased ratelimit.RateLimit `yaml:"ip_based" json:"ip_based"`
}

// DefaultLimits returns the built-in limits table.
func DefaultLimits() Limits {
	return Limits{
		SessionGlobal: ratelimit.MustRateLimit(100, 60, 20),
		Tools: []ToolRule{
			{Name: "ai_features", Patterns: []string{"natural_language", "ai_", "nl_"}, Limit: ratelimit.MustRateLimit(5, 60, 0)},
			{Name: "code_generation", Patterns: []string{"generate", "codegen", "scaffold"}, Limit: ratelimit.MustRateLimit(10, 60, 0)},
			{Name: "testing", Patterns: []string{"test"}, Limit: ratelimit.MustRateLimit(20, 60, 0)},
			{Name: "debugging", Patterns: []string{"debug", "breakpoint"}, Limit: ratelimit.MustRateLimit(15, 60, 0)},
			{Name: "inspection", Patterns: []string{"inspect", "describe", "list_"}, Limit: ratelimit.MustRateLimit(30, 60, 0)},
			{Name: "general", Limit: ratelimit.MustRateLimit(50, 60, 0)},
		},
		DefaultTool: "general",
		Categories: map[string]ratelimit.RateLimit{
			"heavy_computation":   ratelimit.MustRateLimit(3, 60, 0),
			"file_operations":     ratelimit.MustRateLimit(20, 60, 0),
			"network_requests":    ratelimit.MustRateLimit(10, 60, 0),
			"database_operations": ratelimit.MustRateLimit(25, 60, 0),
		},
		IPBased: ratelimit.MustRateLimit(200, 60, 50),
	}
}

// Validate checks every limit in the table and that the default tool rule
// exists.
func (l Limits) Validate() error {
	var errs []error

	if err := l.SessionGlobal.Validate(); err != nil {
		errs = append(errs, &ConfigError{Path: "session_global", Err: err})
	}
	if err := l.IPBased.Validate(); err != nil {
		errs = append(errs, &ConfigError{Path: "ip_based", Err: err})
	}

	seen := make(map[string]bool, len(l.Tools))
	for i, rule := range l.Tools {
		path := fmt.Sprintf("tools[%d]", i)
		if rule.Name == "" {
			errs = append(errs, &ConfigError{Path: path + ".name", Err: errors.New("name is required")})
			continue
		}
		if seen[rule.Name] {
			errs = append(errs, &ConfigError{Path: path + ".name", Err: fmt.Errorf("duplicate rule %q", rule.Name)})
		}
		seen[rule.Name] = true

		if err := rule.Limit.Validate(); err != nil {
			errs = append(errs, &ConfigError{Path: "tools." + rule.Name, Err: err})
		}
		for _, p := range rule.Patterns {
			if strings.TrimSpace(p) == "" {
				errs = append(errs, &ConfigError{Path: "tools." + rule.Name + ".patterns", Err: errors.New("empty pattern")})
			}
		}
	}

	if l.DefaultTool == "" {
		errs = append(errs, &ConfigError{Path: "default_tool", Err: errors.New("default tool rule is required")})
	} else if !seen[l.DefaultTool] {
		errs = append(errs, &ConfigError{Path: "default_tool", Err: fmt.Errorf("no tool rule named %q", l.DefaultTool)})
	}

	for name, limit := range l.Categories {
		if err := limit.Validate(); err != nil {
			errs = append(errs, &ConfigError{Path: "categories." + name, Err: err})
		}
	}

	return errors.Join(errs...)
}

// ResolveTool returns the rule that applies to a tool invocation.
//
// Resolution order:
//  1. the first rule with a pattern contained in the tool name
//  2. the rule named after the category
//  3. the DefaultTool rule
func (l Limits) ResolveTool(toolName, category string) ToolRule {
	name := strings.ToLower(toolName)
	for _, rule := range l.Tools {
		for _, p := range rule.Patterns {
			if strings.Contains(name, strings.ToLower(p)) {
				return rule
			}
		}
	}

	if category != "" {
		if rule, ok := l.rule(category); ok {
			return rule
		}
	}

	rule, _ := l.rule(l.DefaultTool)
	return rule
}

// CategoryLimit returns the configured limit for a category.
func (l Limits) CategoryLimit(category string) (ratelimit.RateLimit, bool) {
	limit, ok := l.Categories[category]
	return limit, ok
}

func (l Limits) rule(name string) (ToolRule, bool) {
	for _, rule := range l.Tools {
		if rule.Name == name {
			return rule, true
		}
	}
	return ToolRule{}, false
}

// Equal reports whether two tables configure the same limits. Nil and empty
// collections compare equal.
func (l Limits) Equal(other Limits) bool {
	if l.SessionGlobal != other.SessionGlobal || l.IPBased != other.IPBased || l.DefaultTool != other.DefaultTool {
		return false
	}
	if !maps.Equal(l.Categories, other.Categories) {
		return false
	}
	return slices.EqualFunc(l.Tools, other.Tools, func(a, b ToolRule) bool {
		return a.Name == b.Name && a.Limit == b.Limit && slices.Equal(a.Patterns, b.Patterns)
	})
}

// clone returns a deep copy so callers cannot mutate the Manager's table.
func (l Limits) clone() Limits {
	out := l
	out.Tools = make([]ToolRule, len(l.Tools))
	for i, rule := range l.Tools {
		rule.Patterns = append([]string(nil), rule.Patterns...)
		out.Tools[i] = rule
	}
	out.Categories = make(map[string]ratelimit.RateLimit, len(l.Categories))
	for k, v := range l.Categories {
		out.Categories[k] = v
	}
	return out
}

// isZero reports whether no limits were configured at all.
func (l Limits) isZero() bool {
	return l.SessionGlobal.IsZero() && l.IPBased.IsZero() && len(l.Tools) == 0 &&
		len(l.Categories) == 0 && l.DefaultTool == ""
}
