// Package problemdata resolves a problem id into its ordered test cases,
// maintaining an on-disk cache shared across submissions.
package problemdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cachex "algojudge/internal/common/cache"
	"algojudge/internal/common/storage"
	appErr "algojudge/pkg/errors"
	"algojudge/pkg/utils/logger"
)

const (
	objectPrefix   = "problems/"
	testDataDir    = "test_data"
	packedDataName = "test_data.tar.zst"
	lockKeyPrefix  = "judge:datapack:lock:"

	lockTTL      = 5 * time.Minute
	pollInterval = 200 * time.Millisecond
)

// TestCase is one input/expected-output pair, ordered by its numeric
// filename suffix.
type TestCase struct {
	Number   int
	Input    string
	Expected string
}

// Provider resolves problem ids to ordered test cases.
type Provider interface {
	Fetch(ctx context.Context, problemID int64) ([]TestCase, error)
}

// CachedProvider reads test data from a local directory tree and fills it
// from object storage on a cold problem. The local tree survives across
// submissions, so each problem is downloaded once per node.
type CachedProvider struct {
	root     string
	bucket   string
	storage  storage.ObjectStorage
	lock     cachex.LockOps
	lockWait time.Duration
}

// NewCachedProvider creates a provider rooted at problemRoot. The lock
// client serializes cold downloads of the same problem across workers; a
// nil lock disables that protection.
func NewCachedProvider(problemRoot, bucket string, store storage.ObjectStorage, lock cachex.LockOps, lockWait time.Duration) (*CachedProvider, error) {
	if problemRoot == "" {
		return nil, appErr.ValidationError("problemRoot", "required")
	}
	if lockWait <= 0 {
		lockWait = 30 * time.Second
	}
	abs, err := filepath.Abs(problemRoot)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.TestDataDownloadErr, "resolve problem root failed")
	}
	return &CachedProvider{
		root:     abs,
		bucket:   bucket,
		storage:  store,
		lock:     lock,
		lockWait: lockWait,
	}, nil
}

var _ Provider = (*CachedProvider)(nil)

// Fetch returns the ordered test cases for a problem, downloading them on
// first use. Every violation of the pairing invariants surfaces as an
// error so the submission fails instead of judging against partial data.
func (p *CachedProvider) Fetch(ctx context.Context, problemID int64) ([]TestCase, error) {
	if problemID <= 0 {
		return nil, appErr.ValidationError("problemID", "must be positive")
	}
	dir := p.localDir(problemID)

	cases, err := LoadDir(dir)
	if err == nil {
		return cases, nil
	}
	if !appErr.Is(err, appErr.TestDataMissing) {
		return nil, err
	}

	if err := p.ensureLocal(ctx, problemID, dir); err != nil {
		return nil, err
	}
	return LoadDir(dir)
}

func (p *CachedProvider) localDir(problemID int64) string {
	return filepath.Join(p.root, strconv.FormatInt(problemID, 10), testDataDir)
}

// ensureLocal populates the local directory from object storage. One
// worker wins the per-problem lock and downloads; the rest poll the
// directory until the winner finishes.
func (p *CachedProvider) ensureLocal(ctx context.Context, problemID int64, dir string) error {
	if p.storage == nil {
		return appErr.New(appErr.TestDataDownloadErr).WithMessage("object storage is not configured")
	}
	if p.lock == nil {
		return p.download(ctx, problemID, dir)
	}

	lockKey := lockKeyPrefix + strconv.FormatInt(problemID, 10)
	locked, err := p.lock.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		return appErr.Wrapf(err, appErr.LockFailed, "acquire test data lock failed")
	}
	if !locked {
		return p.waitForDownload(ctx, dir)
	}
	defer func() {
		if err := p.lock.Unlock(ctx, lockKey); err != nil {
			logger.Warnf(ctx, "release test data lock failed problem_id=%d: %v", problemID, err)
		}
	}()

	// The winner may have finished between our miss and the lock grab.
	if hasTestFiles(dir) {
		return nil
	}
	return p.download(ctx, problemID, dir)
}

func (p *CachedProvider) waitForDownload(ctx context.Context, dir string) error {
	deadline := time.Now().Add(p.lockWait)
	for {
		if hasTestFiles(dir) {
			return nil
		}
		if time.Now().After(deadline) {
			return appErr.New(appErr.Timeout).WithMessage("wait for test data download timeout")
		}
		select {
		case <-ctx.Done():
			return appErr.Wrapf(ctx.Err(), appErr.Timeout, "wait for test data download canceled")
		case <-time.After(pollInterval):
		}
	}
}

// download materializes the test data into a staging directory and
// renames it into place, so concurrent readers never observe a partial
// tree. The packed archive is preferred; per-object download is the
// fallback for problems uploaded without one.
func (p *CachedProvider) download(ctx context.Context, problemID int64, dir string) error {
	staging := dir + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return appErr.Wrapf(err, appErr.TestDataDownloadErr, "clear staging dir failed")
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return appErr.Wrapf(err, appErr.TestDataDownloadErr, "create staging dir failed")
	}
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	packedKey := fmt.Sprintf("%s%d/%s", objectPrefix, problemID, packedDataName)
	err := p.downloadPacked(ctx, packedKey, staging)
	if err != nil && appErr.Is(err, appErr.ObjectNotFound) {
		err = p.downloadObjects(ctx, problemID, staging)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return appErr.Wrapf(err, appErr.TestDataDownloadErr, "create problem dir failed")
	}
	if err := os.RemoveAll(dir); err != nil {
		return appErr.Wrapf(err, appErr.TestDataDownloadErr, "clear stale test data failed")
	}
	if err := os.Rename(staging, dir); err != nil {
		return appErr.Wrapf(err, appErr.TestDataDownloadErr, "finalize test data dir failed")
	}
	logger.Infof(ctx, "test data downloaded problem_id=%d dir=%s", problemID, dir)
	return nil
}

// downloadObjects fetches every object under the problem's test_data
// prefix one by one.
func (p *CachedProvider) downloadObjects(ctx context.Context, problemID int64, staging string) error {
	prefix := fmt.Sprintf("%s%d/%s/", objectPrefix, problemID, testDataDir)
	count := 0
	for info := range p.storage.ListObjects(ctx, p.bucket, prefix) {
		if info.Err != nil {
			return appErr.Wrapf(info.Err, appErr.TestDataDownloadErr, "list test data failed")
		}
		name := filepath.Base(strings.TrimSuffix(info.Key, "/"))
		if name == "" || name == "." {
			continue
		}
		local := filepath.Join(staging, name)
		if err := storage.DownloadToFile(ctx, p.storage, p.bucket, info.Key, local); err != nil {
			return appErr.Wrapf(err, appErr.TestDataDownloadErr, "download %s failed", info.Key)
		}
		count++
	}
	if count == 0 {
		return appErr.Newf(appErr.TestDataMissing, "no test data objects for problem %d", problemID)
	}
	return nil
}

// hasTestFiles reports whether the directory already holds at least one
// test case file.
func hasTestFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if testFileName.MatchString(entry.Name()) {
			return true
		}
	}
	return false
}
