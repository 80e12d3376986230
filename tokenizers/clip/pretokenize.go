package clip

import "regexp"

// unitPattern splits normalized text into coarse units, in priority order:
// the two delimiter literals, the closed set of English contraction suffixes,
// runs of letters, single numeric code points (digits never group), and runs
// of everything else that is not whitespace. Go's regexp prefers earlier
// alternatives at the same position, which gives exactly this priority order.
//
// The input is already lower-cased, so no case-insensitive flag is needed.
var unitPattern, unitPatternErr = regexp.Compile(
	`<\|startoftext\|>|<\|endoftext\|>|'s|'t|'re|'ve|'m|'ll|'d|\p{L}+|\p{N}|[^\s\p{L}\p{N}]+`)

// splitUnits splits normalized text into the ordered coarse units fed to the
// merge engine. Whitespace produces no unit. If the pattern engine is
// unavailable it returns no units: splitting is pure and has nothing to
// unwind, so there is no error to propagate.
func splitUnits(text string) []string {
	if unitPatternErr != nil {
		return nil
	}
	return unitPattern.FindAllString(text, -1)
}
