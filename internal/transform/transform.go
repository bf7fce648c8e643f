// Package transform applies the keyword policy: cleanup, deduplication,
// count cap, suffixing and the additive merge with pre-existing keywords.
// Everything here is pure and deterministic.
package transform

import "strings"

// Policy controls how generated phrases become final keywords.
type Policy struct {
	// Suffix is appended to every machine-generated keyword, separator
	// included (e.g. "_ai"). Empty disables suffixing. Pre-existing keywords
	// are never suffixed.
	Suffix string

	// MaxTags caps how many generated keywords survive. Earlier phrases in
	// model output order are kept preferentially; this is policy, not an
	// accident of iteration order.
	MaxTags int
}

// KeywordSet is the outcome of one transform pass. Existing keywords are
// carried through untouched and in their original order; Added holds only
// the keywords this pass contributes. Writes downstream persist the union,
// so no pass ever shrinks a photo's keyword set.
type KeywordSet struct {
	Existing []string
	Added    []string
}

// All returns existing keywords followed by the newly added ones.
func (k KeywordSet) All() []string {
	out := make([]string, 0, len(k.Existing)+len(k.Added))
	out = append(out, k.Existing...)
	out = append(out, k.Added...)
	return out
}

// HasNew reports whether the pass contributed anything.
func (k KeywordSet) HasNew() bool {
	return len(k.Added) > 0
}

// Apply turns raw generated phrases into the final keyword set for one
// photo. Order of operations matters for determinism: normalize, dedupe
// case-insensitively (against the batch and against existing), cap, suffix,
// then a second existing-check so reprocessing a photo never duplicates a
// previously suffixed keyword.
func Apply(raw []string, existing []string, p Policy) KeywordSet {
	taken := make(map[string]bool, len(existing))
	for _, e := range existing {
		taken[strings.ToLower(e)] = true
	}

	seen := make(map[string]bool)
	var kept []string
	for _, phrase := range raw {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		key := strings.ToLower(phrase)
		if seen[key] || taken[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, phrase)
	}

	if p.MaxTags > 0 && len(kept) > p.MaxTags {
		kept = kept[:p.MaxTags]
	}

	var added []string
	for _, phrase := range kept {
		if p.Suffix != "" && !strings.HasSuffix(phrase, p.Suffix) {
			phrase += p.Suffix
		}
		if taken[strings.ToLower(phrase)] {
			continue
		}
		taken[strings.ToLower(phrase)] = true
		added = append(added, phrase)
	}

	return KeywordSet{Existing: existing, Added: added}
}
