package clip

// bpe decomposes one pre-tokenized unit into vocabulary sub-word pieces by
// repeatedly merging the lowest-ranked adjacent symbol pair until no known
// merge remains. Results are cached per unit, since the same words recur
// across prompts; the cached slice is returned as-is and must not be mutated
// by callers.
//
// The unit must be non-empty; an empty unit is a caller bug.
func (t *Tokenizer) bpe(unit string) []string {
	if unit == "" {
		panic("clip: bpe called with an empty unit")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if pieces, ok := t.cache[unit]; ok {
		return pieces
	}

	// Start from individual characters, with the end-of-word marker fused onto
	// the last one.
	word := make([]string, 0, len(unit))
	for _, r := range unit {
		word = append(word, string(r))
	}
	word[len(word)-1] += endOfWord

	for len(word) > 1 {
		// Lowest-ranked adjacent pair; pairs absent from the table rank as
		// effectively infinite and are never selected.
		best := -1
		bestRank := 0
		for i := 0; i < len(word)-1; i++ {
			rank, ok := t.ranks[symbolPair{word[i], word[i+1]}]
			if ok && (best < 0 || rank < bestRank) {
				best = i
				bestRank = rank
			}
		}
		if best < 0 {
			break
		}

		// Merge every adjacent occurrence of the selected pair in one
		// left-to-right pass. A matched pair consumes both symbols, so a match
		// cannot restart at its own second symbol.
		first, second := word[best], word[best+1]
		merged := first + second
		next := make([]string, 0, len(word))
		for i := 0; i < len(word); {
			if i < len(word)-1 && word[i] == first && word[i+1] == second {
				next = append(next, merged)
				i += 2
			} else {
				next = append(next, word[i])
				i++
			}
		}
		word = next
	}

	t.cache[unit] = word
	return word
}
