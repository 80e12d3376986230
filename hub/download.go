package hub

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DownloadFile downloads a file of the repository into the cache directory and
// returns its local path. If the file is already cached it returns immediately.
func (r *Repo) DownloadFile(fileName string) (string, error) {
	return r.DownloadFileWithContext(context.Background(), fileName)
}

// DownloadFileWithContext is DownloadFile honoring a context for cancellation.
func (r *Repo) DownloadFileWithContext(ctx context.Context, fileName string) (string, error) {
	filePath := r.localPath(fileName)
	if err := r.lockedDownload(ctx, r.FileURL(fileName), filePath); err != nil {
		return "", err
	}
	return filePath, nil
}

// lockedDownload downloads url to the given filePath.
//
// If filePath already exists, it is assumed to have been correctly downloaded,
// and it returns immediately.
//
// It downloads to a unique temporary file and then atomically moves it to
// filePath. A filePath+".lock" file coordinates multiple processes trying to
// download the same file at the same time.
func (r *Repo) lockedDownload(ctx context.Context, url, filePath string) error {
	if fileExists(filePath) {
		return nil
	}

	// Checks whether context has already been cancelled, and exit immediately.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for file %q", filePath)
	}

	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(lockPath, func() {
		if fileExists(filePath) {
			// Some concurrent other process (or goroutine) already downloaded the file.
			return
		}

		// Unique temporary name, so a goroutine of the same process that raced us
		// to this point never writes to the same file.
		tmpPath := filePath + ".downloading-" + uuid.NewString()
		klog.V(1).Infof("downloading %q to %q", url, filePath)

		mainErr = r.fetch(ctx, url, tmpPath)
		if mainErr != nil {
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				klog.Warningf("failed removing temporary file %q: %v", tmpPath, err)
			}
			mainErr = errors.WithMessagef(mainErr, "while downloading %q to %q", url, tmpPath)
			return
		}

		// Download succeeded, move to our target location.
		if err := os.Rename(tmpPath, filePath); err != nil {
			mainErr = errors.Wrapf(err, "failed to move downloaded file %q to %q", tmpPath, filePath)
			return
		}

		// File now exists, so we no longer need the lock file.
		if err := os.Remove(lockPath); err != nil {
			klog.Warningf("error removing lock file %q: %+v", lockPath, err)
		}
	})
	if mainErr != nil {
		return mainErr
	}
	if errLock != nil {
		return errors.WithMessagef(errLock, "while locking %q to download %q", lockPath, url)
	}
	return nil
}

// fetch performs the HTTP GET of url into tmpPath.
func (r *Repo) fetch(ctx context.Context, url, tmpPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to build request for %q", url)
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to request %q", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("request to %q returned status %s", url, resp.Status)
	}

	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "creating temporary file for download in %q", tmpPath)
	}

	_, err = io.Copy(tmpFile, resp.Body)
	if err != nil {
		_ = tmpFile.Close()
		return errors.Wrapf(err, "failed writing download of %q", url)
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary download file %q", tmpPath)
	}
	return nil
}

// execOnFileLock opens the lockPath file (or creates if it doesn't yet exist), locks it, and executes the function.
// If the lockPath is already locked, it polls with a 1 to 2 seconds period (randomly), until it acquires the lock.
//
// The lockPath is not removed. It's safe to remove it from the given fn, if one knows that no new calls to
// execOnFileLock with the same lockPath is going to be made.
func execOnFileLock(lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)

	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}

		// Wait from 1 to 2 seconds.
		time.Sleep(time.Millisecond * time.Duration(1000+rand.Intn(1000)))
	}

	// Setup clean up in a deferred function, so it happens even if `fn()` panics.
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			// If we already have an error, don't overwrite it.
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Warningf("error unlocking file %q: %v", lockPath, unlockErr)
			}
		}
	}()

	fn()

	return
}

// fileExists returns whether filePath exists.
func fileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
