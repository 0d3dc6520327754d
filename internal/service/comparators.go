package service

import (
	"sort"
	"strings"

	"github.com/topiclab/mastery/internal/domain"
)

// Comparator is one opposition heuristic. Comparators are only consulted
// for claim pairs sharing an inferred subject; each reports whether the two
// statements make incompatible assertions. New heuristics plug in without
// touching the aggregator or scorer.
type Comparator interface {
	Name() string
	Opposes(a, b domain.Claim) bool
}

// DefaultComparators returns the conservative built-in set: explicit
// negation, antonymous direction verbs, and quantifier mismatch. Pairs that
// are merely in tension are left unflagged; precision is preferred over
// recall here and the set is tunable.
func DefaultComparators() []Comparator {
	return []Comparator{
		negationComparator{},
		directionComparator{},
		categoricalComparator{},
	}
}

// negationTokens are stripped before comparing statements for negation
// opposition. Auxiliaries are included so "does not use X" matches "uses X".
var negationTokens = map[string]bool{
	"not": true, "no": true, "cannot": true,
	"dont": true, "doesnt": true, "didnt": true, "wont": true,
	"isnt": true, "arent": true, "wasnt": true, "werent": true,
	"do": true, "does": true, "did": true,
}

// negationComparator flags a claim against its direct negation: the
// statements must be token-identical once negation words are removed.
type negationComparator struct{}

func (negationComparator) Name() string { return "negation" }

func (negationComparator) Opposes(a, b domain.Claim) bool {
	aBase, aNeg := stripNegation(a.Normalized())
	bBase, bNeg := stripNegation(b.Normalized())
	if aNeg == bNeg {
		return false
	}
	return aBase == bBase
}

// stripNegation removes negation tokens and returns the remaining tokens in
// sorted, lightly stemmed form plus whether any negation token was present.
func stripNegation(norm string) (string, bool) {
	var kept []string
	negated := false
	for _, w := range strings.Fields(norm) {
		if negationTokens[w] {
			if w != "do" && w != "does" && w != "did" {
				negated = true
			}
			continue
		}
		kept = append(kept, stem(w))
	}
	sort.Strings(kept)
	return strings.Join(kept, " "), negated
}

// stem trims a trailing plural/3rd-person "s". Deliberately naive; the
// comparator only needs "uses"/"use" style variants to collide.
func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

// directionPairs maps direction verbs to an antonym-pair id and a polarity.
// Two claims on the same subject using opposite polarities of the same pair
// oppose each other.
var directionPairs = map[string]struct {
	pair string
	up   bool
}{
	"increase": {"increase", true}, "increases": {"increase", true}, "increased": {"increase", true},
	"decrease": {"increase", false}, "decreases": {"increase", false}, "decreased": {"increase", false},
	"raise": {"raise", true}, "raises": {"raise", true}, "raised": {"raise", true},
	"lower": {"raise", false}, "lowers": {"raise", false}, "lowered": {"raise", false},
	"rise": {"rise", true}, "rises": {"rise", true}, "rose": {"rise", true},
	"fall": {"rise", false}, "falls": {"rise", false}, "fell": {"rise", false},
	"improve": {"improve", true}, "improves": {"improve", true}, "improved": {"improve", true},
	"worsen": {"improve", false}, "worsens": {"improve", false}, "worsened": {"improve", false},
	"widen": {"widen", true}, "widens": {"widen", true}, "widened": {"widen", true},
	"narrow": {"widen", false}, "narrows": {"widen", false}, "narrowed": {"widen", false},
	"expand": {"expand", true}, "expands": {"expand", true}, "expanded": {"expand", true},
	"contract": {"expand", false}, "contracts": {"expand", false}, "contracted": {"expand", false},
	"strengthen": {"strengthen", true}, "strengthens": {"strengthen", true}, "strengthened": {"strengthen", true},
	"weaken": {"strengthen", false}, "weakens": {"strengthen", false}, "weakened": {"strengthen", false},
	"overestimate": {"estimate", true}, "overestimates": {"estimate", true},
	"underestimate": {"estimate", false}, "underestimates": {"estimate", false},
	"bullish": {"bullish", true}, "bearish": {"bullish", false},
	"outperform": {"outperform", true}, "outperforms": {"outperform", true},
	"underperform": {"outperform", false}, "underperforms": {"outperform", false},
}

// directionComparator flags claims asserting opposite directions about the
// same subject, e.g. "X increases Y" vs "X decreases Y".
type directionComparator struct{}

func (directionComparator) Name() string { return "direction" }

func (directionComparator) Opposes(a, b domain.Claim) bool {
	for _, wa := range strings.Fields(a.Normalized()) {
		da, ok := directionPairs[wa]
		if !ok {
			continue
		}
		for _, wb := range strings.Fields(b.Normalized()) {
			db, ok := directionPairs[wb]
			if ok && da.pair == db.pair && da.up != db.up {
				return true
			}
		}
	}
	return false
}

// quantifierPairs holds mutually exclusive quantifiers. Claims that match
// once the quantifier is removed, but use opposite quantifiers, oppose.
var quantifierPairs = map[string]string{
	"always": "never", "never": "always",
	"all": "none", "none": "all",
}

// categoricalComparator flags quantifier mismatches such as
// "X always holds" vs "X never holds".
type categoricalComparator struct{}

func (categoricalComparator) Name() string { return "categorical" }

func (categoricalComparator) Opposes(a, b domain.Claim) bool {
	aBase, aQuant := stripQuantifier(a.Normalized())
	bBase, bQuant := stripQuantifier(b.Normalized())
	if aQuant == "" || bQuant == "" || aBase != bBase {
		return false
	}
	return quantifierPairs[aQuant] == bQuant
}

func stripQuantifier(norm string) (string, string) {
	var kept []string
	quant := ""
	for _, w := range strings.Fields(norm) {
		if _, ok := quantifierPairs[w]; ok && quant == "" {
			quant = w
			continue
		}
		kept = append(kept, stem(w))
	}
	sort.Strings(kept)
	return strings.Join(kept, " "), quant
}
