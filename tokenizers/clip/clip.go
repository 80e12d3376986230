// Package clip implements the byte-pair-encoding tokenizer used by the CLIP
// family of text encoders.
//
// The tokenizer is built from two trained artifacts: an ordered list of merge
// rules (rank table) and a vocabulary mapping sub-word pieces to integer ids.
// Encoding must reproduce the reference implementation id-for-id; any deviation
// silently corrupts the embeddings computed downstream.
package clip

import (
	"html"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/textenc/go-cliptoken/tokenizers/api"
)

// The two sequence delimiters. They are never split or merged and must be
// present in the vocabulary.
const (
	BosToken = "<|startoftext|>"
	EosToken = "<|endoftext|>"
)

// endOfWord is appended to the last character of every unit before merging, to
// distinguish word-final sub-pieces from interior ones. It must match how the
// merge rules and vocabulary were built.
const endOfWord = "</w>"

// DefaultContextLength is the fixed prompt length of the standard CLIP text
// encoders.
const DefaultContextLength = 77

// symbolPair is an ordered pair of adjacent symbols, the key of the rank table.
type symbolPair [2]string

// Tokenizer implements api.Tokenizer for CLIP BPE vocabularies.
type Tokenizer struct {
	encoder map[string]int32
	decoder map[int32]string
	ranks   map[symbolPair]int

	bosID, eosID int32

	// cache maps a pre-tokenized unit to its merged pieces. Guarded by mu so a
	// single Tokenizer can be shared across goroutines.
	mu    sync.Mutex
	cache map[string][]string
}

// Compile time assert that Tokenizer implements the api interfaces.
var (
	_ api.Tokenizer       = &Tokenizer{}
	_ api.PaddedTokenizer = &Tokenizer{}
)

// New creates a Tokenizer from an in-memory vocabulary and the ordered list of
// merge rules. Each rule line holds exactly two whitespace-separated symbols;
// its position in the list is its rank (0 merges first). The vocabulary must
// contain the <|startoftext|> and <|endoftext|> tokens.
func New(vocab map[string]int32, merges []string) (*Tokenizer, error) {
	bosID, ok := vocab[BosToken]
	if !ok {
		return nil, errors.Errorf("vocabulary is missing required special token %q", BosToken)
	}
	eosID, ok := vocab[EosToken]
	if !ok {
		return nil, errors.Errorf("vocabulary is missing required special token %q", EosToken)
	}

	ranks := make(map[symbolPair]int, len(merges))
	for i, line := range merges {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf("merge rule %d: %q must have exactly two fields", i, line)
		}
		ranks[symbolPair{fields[0], fields[1]}] = i
	}

	decoder := make(map[int32]string, len(vocab))
	for piece, id := range vocab {
		decoder[id] = piece
	}

	t := &Tokenizer{
		encoder: vocab,
		decoder: decoder,
		ranks:   ranks,
		bosID:   bosID,
		eosID:   eosID,
		cache:   make(map[string][]string),
	}

	// The delimiters pass through merging unchanged.
	t.cache[BosToken] = []string{BosToken}
	t.cache[EosToken] = []string{EosToken}

	return t, nil
}

// normalize applies the CLIP text cleanup: HTML entity unescape, NFC
// normalization, lower-casing, and collapsing of whitespace runs to a single
// space.
func normalize(text string) string {
	text = html.UnescapeString(text)
	text = norm.NFC.String(text)
	text = strings.ToLower(text)
	return strings.Join(strings.Fields(text), " ")
}

// Encode converts text to the sequence of token ids fed to the text encoder.
// The result always starts with the <|startoftext|> id and ends with the
// <|endoftext|> id; sub-pieces absent from the vocabulary are dropped.
func (t *Tokenizer) Encode(text string) []int32 {
	units := splitUnits(normalize(text))

	ids := make([]int32, 0, len(units)+2)
	ids = append(ids, t.bosID)
	for _, unit := range units {
		for _, piece := range t.bpe(unit) {
			if id, ok := t.encoder[piece]; ok {
				ids = append(ids, id)
			}
		}
	}
	return append(ids, t.eosID)
}

// EncodePadded encodes text into fixed-length id and attention-mask slices of
// length contextLength, as expected by CLIP text encoders (see
// DefaultContextLength). Content beyond contextLength-2 ids is truncated so the
// end-of-sequence delimiter is always present.
func (t *Tokenizer) EncodePadded(text string, contextLength int) (ids, mask []int32, err error) {
	if contextLength < 2 {
		return nil, nil, errors.Errorf("context length %d cannot hold the two sequence delimiters", contextLength)
	}

	encoded := t.Encode(text)
	content := encoded[1 : len(encoded)-1]
	if len(content) > contextLength-2 {
		content = content[:contextLength-2]
	}

	ids = make([]int32, contextLength)
	mask = make([]int32, contextLength)
	ids[0] = t.bosID
	mask[0] = 1
	for i, id := range content {
		ids[i+1] = id
		mask[i+1] = 1
	}
	ids[len(content)+1] = t.eosID
	mask[len(content)+1] = 1

	return ids, mask, nil
}

// Decode converts ids back to text. Delimiter tokens and unknown ids are
// skipped; end-of-word markers become spaces.
func (t *Tokenizer) Decode(ids []int32) string {
	var sb strings.Builder
	for _, id := range ids {
		if id == t.bosID || id == t.eosID {
			continue
		}
		piece, ok := t.decoder[id]
		if !ok {
			continue
		}
		sb.WriteString(strings.ReplaceAll(piece, endOfWord, " "))
	}
	return strings.TrimSpace(sb.String())
}

// SpecialTokenID returns the id for the given special token, or an error if
// the token is not part of the CLIP vocabulary.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int32, error) {
	switch token {
	case api.TokBeginningOfSequence:
		return t.bosID, nil
	case api.TokEndOfSequence:
		return t.eosID, nil
	default:
		return 0, errors.Errorf("special token %s not registered in CLIP vocabulary", token)
	}
}

// VocabSize returns the size of the vocabulary.
func (t *Tokenizer) VocabSize() int {
	return len(t.encoder)
}

// TokenToID converts a sub-word piece to its id.
func (t *Tokenizer) TokenToID(piece string) (int32, bool) {
	id, ok := t.encoder[piece]
	return id, ok
}

// IDToToken converts a token id to its sub-word piece.
func (t *Tokenizer) IDToToken(id int32) (string, bool) {
	piece, ok := t.decoder[id]
	return piece, ok
}
