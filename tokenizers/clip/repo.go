package clip

import (
	"github.com/pkg/errors"

	"github.com/textenc/go-cliptoken/hub"
)

// NewFromRepo downloads the tokenizer artifacts of a hub repository and builds
// a Tokenizer from them. It prefers the consolidated tokenizer.json and falls
// back to the classic vocab.json + merges.txt pair.
func NewFromRepo(repo *hub.Repo) (*Tokenizer, error) {
	if tokenizerFile, err := repo.DownloadFile("tokenizer.json"); err == nil {
		return NewFromTokenizerJSONFile(tokenizerFile)
	}

	vocabFile, err := repo.DownloadFile("vocab.json")
	if err != nil {
		return nil, errors.WithMessagef(err, "repo %q has neither tokenizer.json nor vocab.json", repo.ID)
	}
	mergesFile, err := repo.DownloadFile("merges.txt")
	if err != nil {
		return nil, errors.WithMessagef(err, "can't download merges.txt from repo %q", repo.ID)
	}
	return NewFromFiles(vocabFile, mergesFile)
}
