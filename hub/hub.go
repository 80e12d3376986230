// Package hub downloads tokenizer artifacts (vocab.json, merges.txt,
// tokenizer.json) from the HuggingFace hub into a local cache directory.
//
// Downloads are coordinated across processes with a file lock and placed
// atomically, so several programs can share one cache directory.
package hub

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the HuggingFace endpoint files are resolved against.
const DefaultBaseURL = "https://huggingface.co"

// DefaultDirCreationPerm is the permission used when creating cache directories.
const DefaultDirCreationPerm = os.FileMode(0755)

// Repo references a repository on the HuggingFace hub, e.g.
// "openai/clip-vit-base-patch32".
type Repo struct {
	// ID of the repository, in the "owner/name" format.
	ID string

	cacheDir  string
	baseURL   string
	authToken string
	client    *http.Client
}

// New creates a reference to a HuggingFace hub repository, with files cached
// under DefaultCacheDir.
func New(id string) *Repo {
	return &Repo{
		ID:       id,
		cacheDir: DefaultCacheDir(),
		baseURL:  DefaultBaseURL,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

// WithCacheDir sets the directory files are downloaded to. It returns the
// updated Repo, so calls can be chained.
func (r *Repo) WithCacheDir(dir string) *Repo {
	r.cacheDir = dir
	return r
}

// WithBaseURL sets the hub endpoint. Mostly used in tests.
func (r *Repo) WithBaseURL(baseURL string) *Repo {
	r.baseURL = strings.TrimSuffix(baseURL, "/")
	return r
}

// WithAuthToken sets the bearer token sent with download requests, needed for
// gated repositories.
func (r *Repo) WithAuthToken(token string) *Repo {
	r.authToken = token
	return r
}

// DefaultCacheDir returns the default cache directory,
// ${XDG_CACHE_HOME:-~/.cache}/cliptoken/hub.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "cliptoken", "hub")
}

// FileURL returns the URL a file of the repository resolves to.
func (r *Repo) FileURL(fileName string) string {
	return r.baseURL + "/" + r.ID + "/resolve/main/" + fileName
}

// localPath returns the cache path of a file of the repository.
func (r *Repo) localPath(fileName string) string {
	return filepath.Join(r.cacheDir, strings.ReplaceAll(r.ID, "/", "--"), fileName)
}
