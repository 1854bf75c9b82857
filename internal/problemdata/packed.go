package problemdata

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	appErr "algojudge/pkg/errors"
)

// maxPackedFileBytes caps a single extracted file so a malicious archive
// cannot fill the disk.
const maxPackedFileBytes = 64 << 20

// downloadPacked fetches the tar+zstd archive for a problem and extracts
// its regular files into the staging directory. A missing archive is
// reported as ObjectNotFound so the caller can fall back to per-object
// download.
func (p *CachedProvider) downloadPacked(ctx context.Context, objectKey, staging string) error {
	if _, err := p.storage.StatObject(ctx, p.bucket, objectKey); err != nil {
		return appErr.Wrapf(err, appErr.ObjectNotFound, "packed test data not found")
	}
	reader, err := p.storage.GetObject(ctx, p.bucket, objectKey)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataDownloadErr, "download packed test data failed")
	}
	defer func() {
		_ = reader.Close()
	}()

	zr, err := zstd.NewReader(reader)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataCorrupt, "open zstd stream failed")
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	extracted := 0
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.TestDataCorrupt, "read test data archive failed")
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(filepath.Clean(header.Name))
		if name == "" || name == "." || strings.HasPrefix(name, "..") {
			continue
		}
		if err := writeArchiveFile(tr, filepath.Join(staging, name)); err != nil {
			return err
		}
		extracted++
	}
	if extracted == 0 {
		return appErr.New(appErr.TestDataCorrupt).WithMessage("packed test data archive is empty")
	}
	return nil
}

func writeArchiveFile(r io.Reader, path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataDownloadErr, "create extracted file failed")
	}
	_, err = io.Copy(file, io.LimitReader(r, maxPackedFileBytes))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataDownloadErr, "write extracted file failed")
	}
	return nil
}
