package telemetry

import (
	"regexp"

	"github.com/ccu-tools/ccuflux/internal/infrastructure/logging"
)

// Filter decides whether an inbound event should be logged.
//
// Two layers, in priority order: a broad pattern-based whitelist, and a
// narrow exact-address selector consulted only when no pattern matched.
// The filter is immutable once built; a configuration reload builds a new
// one instead of mutating this one.
type Filter struct {
	rules     []*regexp.Regexp
	selected  map[string]struct{}
	noopEmpty bool
}

// NewFilter compiles a filter from whitelist patterns and selected
// datapoint addresses.
//
// A malformed pattern must not take the pipeline down: it is logged and
// dropped, failing that single rule closed, while the remaining rules stay
// in effect.
//
// Parameters:
//   - patterns: Whitelist regular expressions, matched as searches
//   - datapoints: Exact addresses for the fallback selector
//   - logger: Logger for malformed-pattern diagnostics
//
// Returns:
//   - *Filter: Immutable filter snapshot
func NewFilter(patterns []string, datapoints []string, logger *logging.Logger) *Filter {
	f := &Filter{
		selected: make(map[string]struct{}, len(datapoints)),
	}

	for _, pattern := range patterns {
		rule, err := regexp.Compile(pattern)
		if err != nil {
			logger.Error("dropping malformed whitelist pattern",
				"pattern", pattern,
				"error", err,
			)
			continue
		}
		f.rules = append(f.rules, rule)
	}

	for _, address := range datapoints {
		f.selected[address] = struct{}{}
	}

	f.noopEmpty = len(f.rules) == 0 && len(f.selected) == 0

	return f
}

// ShouldLog reports whether the event at the given address is logged.
//
// Priority order, first match wins:
//  1. Any whitelist rule matching the address (regex search) logs it.
//  2. Only when no rule matched, exact membership in the selector logs it.
//  3. Otherwise the event is skipped.
//
// Selector membership is irrelevant once a whitelist rule matched; the
// selector is a fallback, not a second vote.
func (f *Filter) ShouldLog(address string) bool {
	if f.MatchesWhitelist(address) {
		return true
	}
	return f.IsSelected(address)
}

// MatchesWhitelist reports whether any whitelist rule matches the address.
// Exposed separately for the admin device browser, which annotates
// datapoints by layer.
func (f *Filter) MatchesWhitelist(address string) bool {
	for _, rule := range f.rules {
		if rule.MatchString(address) {
			return true
		}
	}
	return false
}

// IsSelected reports exact membership in the datapoint selector.
func (f *Filter) IsSelected(address string) bool {
	_, ok := f.selected[address]
	return ok
}

// Empty reports whether the filter can never match anything. The pipeline
// uses this to warn that it is running in a no-op filtering mode.
func (f *Filter) Empty() bool {
	return f.noopEmpty
}
