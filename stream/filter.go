package stream

import "slices"

// Filter is the root event filter applied to every candidate event before
// publication. An event passes when it satisfies every configured include
// constraint (unconfigured constraints don't participate) and none of the
// configured exclude constraints. The zero value passes everything.
//
// Names match the component display name, types match the run kind
// (llm, chat_model, chain, tool, retriever), tags match any of the event's
// tags. Events failing the filter are dropped silently: selective
// subscriptions are a volume reduction, not an error condition.
type Filter struct {
	IncludeNames []string
	IncludeTypes []string
	IncludeTags  []string
	ExcludeNames []string
	ExcludeTypes []string
	ExcludeTags  []string
}

// Include reports whether the event passes the filter. runType is the kind
// of the run the event belongs to.
func (f *Filter) Include(ev Event, runType string) bool {
	if len(f.IncludeNames) > 0 && !slices.Contains(f.IncludeNames, ev.Name) {
		return false
	}
	if len(f.IncludeTypes) > 0 && !slices.Contains(f.IncludeTypes, runType) {
		return false
	}
	if len(f.IncludeTags) > 0 && !containsAny(ev.Tags, f.IncludeTags) {
		return false
	}
	if slices.Contains(f.ExcludeNames, ev.Name) {
		return false
	}
	if slices.Contains(f.ExcludeTypes, runType) {
		return false
	}
	if containsAny(ev.Tags, f.ExcludeTags) {
		return false
	}
	return true
}

func containsAny(tags, set []string) bool {
	for _, t := range tags {
		if slices.Contains(set, t) {
			return true
		}
	}
	return false
}
