// Package api defines the Tokenizer API.
// It's just a hack to break the cyclic dependency, and allow the users to import `tokenizers` and get the
// default implementations.
package api

// Tokenizer interface allows one to convert text to "tokens" (integer ids) and back.
//
// Ids are int32, matching the input dtype expected by the text-encoder models
// that consume them.
//
// It also allows mapping of special tokens: tokens with a common semantic (like
// beginning-of-sequence) but that may map to different ids (int32) for different
// tokenizers.
type Tokenizer interface {
	Encode(text string) []int32
	Decode(ids []int32) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int32, error)
}

// PaddedTokenizer extends Tokenizer with fixed-length encoding: the id sequence
// is truncated or zero-padded to a fixed context length, along with an
// attention mask marking the occupied positions.
type PaddedTokenizer interface {
	Tokenizer

	// EncodePadded returns ids and attention mask, both of length contextLength.
	EncodePadded(text string, contextLength int) (ids, mask []int32, err error)
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSequence SpecialToken = iota
	TokEndOfSequence
	TokUnknown
	TokPad
	TokSpecialTokensCount
)

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	switch t {
	case TokBeginningOfSequence:
		return "beginning_of_sequence"
	case TokEndOfSequence:
		return "end_of_sequence"
	case TokUnknown:
		return "unknown"
	case TokPad:
		return "pad"
	default:
		return "invalid_special_token"
	}
}
