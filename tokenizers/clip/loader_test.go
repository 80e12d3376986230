package clip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocabJSON = `{
  "<|startoftext|>": 0,
  "<|endoftext|>": 1,
  "low</w>": 2,
  "lo": 3,
  "w</w>": 4
}`

const testMergesTxt = `#version: 0.2
l o
lo w</w>
`

const testTokenizerJSON = `{
  "model": {
    "type": "BPE",
    "vocab": {
      "<|startoftext|>": 0,
      "<|endoftext|>": 1,
      "low</w>": 2,
      "lo": 3,
      "w</w>": 4
    },
    "merges": ["l o", "lo w</w>"]
  }
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "vocab.json", testVocabJSON)
	mergesPath := writeFile(t, dir, "merges.txt", testMergesTxt)

	tok, err := NewFromFiles(vocabPath, mergesPath)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 1}, tok.Encode("low"))
}

func TestNewFromFiles_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "vocab.json", testVocabJSON)

	_, err := NewFromFiles(filepath.Join(dir, "absent.json"), filepath.Join(dir, "merges.txt"))
	require.Error(t, err)

	_, err = NewFromFiles(vocabPath, filepath.Join(dir, "absent.txt"))
	require.Error(t, err)
}

func TestNewFromFiles_MalformedMergeLine(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "vocab.json", testVocabJSON)
	mergesPath := writeFile(t, dir, "merges.txt", "l o w\n")

	_, err := NewFromFiles(vocabPath, mergesPath)
	require.Error(t, err)
}

func TestNewFromTokenizerJSON(t *testing.T) {
	tok, err := NewFromTokenizerJSON([]byte(testTokenizerJSON))
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 1}, tok.Encode("low"))
}

func TestNewFromTokenizerJSON_WrongModelType(t *testing.T) {
	_, err := NewFromTokenizerJSON([]byte(`{"model": {"type": "Unigram", "vocab": {"a": 0}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BPE")
}

func TestNewFromTokenizerJSON_Invalid(t *testing.T) {
	_, err := NewFromTokenizerJSON([]byte(`not json`))
	require.Error(t, err)

	_, err = NewFromTokenizerJSON([]byte(`{"model": {"type": "BPE"}}`))
	require.Error(t, err)
}

func TestNewFromTokenizerJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tokenizer.json", testTokenizerJSON)

	tok, err := NewFromTokenizerJSONFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 1}, tok.Encode("low"))

	_, err = NewFromTokenizerJSONFile(filepath.Join(dir, "absent.json"))
	require.Error(t, err)
}
