package clip

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// tokenizerJSON holds the parts of HuggingFace's tokenizer.json file needed to
// build a CLIP tokenizer.
type tokenizerJSON struct {
	Model struct {
		Type   string           `json:"type"`
		Vocab  map[string]int32 `json:"vocab"`
		Merges []string         `json:"merges"`
	} `json:"model"`
}

// NewFromFiles creates a Tokenizer from the classic vocab.json + merges.txt
// artifact pair distributed with CLIP checkpoints.
func NewFromFiles(vocabPath, mergesPath string) (*Tokenizer, error) {
	vocabData, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary file %q", vocabPath)
	}
	var vocab map[string]int32
	if err := json.Unmarshal(vocabData, &vocab); err != nil {
		return nil, errors.Wrapf(err, "failed to parse vocabulary file %q", vocabPath)
	}

	merges, err := readMerges(mergesPath)
	if err != nil {
		return nil, err
	}

	return New(vocab, merges)
}

// NewFromTokenizerJSONFile creates a Tokenizer from a HuggingFace
// tokenizer.json file path.
func NewFromTokenizerJSONFile(filePath string) (*Tokenizer, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	return NewFromTokenizerJSON(content)
}

// NewFromTokenizerJSON creates a Tokenizer from tokenizer.json content. The
// model block must be of type BPE.
func NewFromTokenizerJSON(content []byte) (*Tokenizer, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}
	if !strings.EqualFold(tj.Model.Type, "BPE") {
		return nil, errors.Errorf("tokenizer.json model type is %q, want BPE", tj.Model.Type)
	}
	if len(tj.Model.Vocab) == 0 {
		return nil, errors.Errorf("tokenizer.json has an empty vocabulary")
	}
	return New(tj.Model.Vocab, tj.Model.Merges)
}

// readMerges reads a merges.txt file into the ordered list of merge-rule
// lines. The leading "#version" header and blank lines are skipped; field
// validation happens in New.
func readMerges(mergesPath string) ([]string, error) {
	f, err := os.Open(mergesPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open merges file %q", mergesPath)
	}
	defer f.Close()

	var merges []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#version") {
			continue
		}
		merges = append(merges, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read merges file %q", mergesPath)
	}
	return merges, nil
}
