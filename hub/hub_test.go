package hub

import (
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer serves the given files under /<repo>/resolve/main/<name> and
// counts requests.
func newTestServer(t *testing.T, files map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		for name, content := range files {
			if r.URL.Path == "/acme/clip-test/resolve/main/"+name {
				_, _ = w.Write([]byte(content))
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestFileURL(t *testing.T) {
	repo := New("openai/clip-vit-base-patch32")
	assert.Equal(t,
		"https://huggingface.co/openai/clip-vit-base-patch32/resolve/main/vocab.json",
		repo.FileURL("vocab.json"))
}

func TestDownloadFile(t *testing.T) {
	server, requests := newTestServer(t, map[string]string{"vocab.json": `{"a": 0}`})
	repo := New("acme/clip-test").WithCacheDir(t.TempDir()).WithBaseURL(server.URL)

	path, err := repo.DownloadFile("vocab.json")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 0}`, string(content))
	assert.Equal(t, int32(1), requests.Load())
}

func TestDownloadFile_CacheHit(t *testing.T) {
	server, requests := newTestServer(t, map[string]string{"merges.txt": "l o\n"})
	repo := New("acme/clip-test").WithCacheDir(t.TempDir()).WithBaseURL(server.URL)

	first, err := repo.DownloadFile("merges.txt")
	require.NoError(t, err)
	second, err := repo.DownloadFile("merges.txt")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), requests.Load(), "second call must be served from cache")
}

func TestDownloadFile_NotFound(t *testing.T) {
	server, _ := newTestServer(t, nil)
	repo := New("acme/clip-test").WithCacheDir(t.TempDir()).WithBaseURL(server.URL)

	_, err := repo.DownloadFile("absent.json")
	require.Error(t, err)
}

func TestDownloadFile_AuthToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	repo := New("acme/clip-test").WithCacheDir(t.TempDir()).WithBaseURL(server.URL).WithAuthToken("secret")
	_, err := repo.DownloadFile("vocab.json")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestDownloadFile_Concurrent(t *testing.T) {
	server, _ := newTestServer(t, map[string]string{"vocab.json": `{"a": 0}`})
	repo := New("acme/clip-test").WithCacheDir(t.TempDir()).WithBaseURL(server.URL)

	var wg sync.WaitGroup
	paths := make([]string, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = repo.DownloadFile("vocab.json")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, `{"a": 0}`, string(content))
}
