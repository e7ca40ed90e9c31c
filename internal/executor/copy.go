package executor

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/hashutil"
	"github.com/retronian/romsorter/internal/model"
)

// copyFile copies src to dst via a sibling dst+".part" file, fsyncing
// best-effort before an atomic rename into place. On cancellation or
// error the ".part" file is unlinked and dst is never touched.
func copyFile(src, dst string, chunkSize int, token *cancelctl.Token) error {
	in, err := os.Open(src)
	if err != nil {
		return model.NewError(model.KindIo, src, errors.Wrap(err, "open source"))
	}
	defer in.Close()

	partPath := dst + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return model.NewError(model.KindIo, dst, errors.Wrap(err, "create part file"))
	}

	if err := copyChunked(out, in, chunkSize, token); err != nil {
		out.Close()
		os.Remove(partPath)
		return err
	}

	out.Sync() //nolint:errcheck // fsync is best-effort
	if err := out.Close(); err != nil {
		os.Remove(partPath)
		return model.NewError(model.KindIo, dst, errors.Wrap(err, "close part file"))
	}

	if err := os.Rename(partPath, dst); err != nil {
		os.Remove(partPath)
		return model.NewError(model.KindIo, dst, errors.Wrap(err, "rename part file into place"))
	}
	return nil
}

// copyChunked streams src into dst in chunkSize pieces, consulting token
// between chunks so a cancel mid-copy leaves no more than one chunk
// written past the cancellation point.
func copyChunked(dst io.Writer, src io.Reader, chunkSize int, token *cancelctl.Token) error {
	chunkSize = hashutil.ClampChunkSize(chunkSize)
	buf := make([]byte, chunkSize)
	for {
		if token.Cancelled() {
			return model.NewError(model.KindCancelled, "", errors.New("copy cancelled"))
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return model.NewError(model.KindIo, "", errors.Wrap(werr, "write"))
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return model.NewError(model.KindIo, "", errors.Wrap(err, "read"))
		}
	}
}

// backupTarget copies the existing file at targetPath into backupDir,
// named overwrite_<UTC timestamp as YYYYMMDDTHHMMSS>_<basename>, before it
// is overwritten.
func backupTarget(targetPath, backupDir string) error {
	if _, err := os.Stat(targetPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return model.NewError(model.KindIo, targetPath, errors.Wrap(err, "stat backup source"))
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return model.NewError(model.KindIo, backupDir, errors.Wrap(err, "create backup dir"))
	}
	name := "overwrite_" + timestampSuffix() + "_" + filepath.Base(targetPath)
	return copyFile(targetPath, filepath.Join(backupDir, name), 0, nil)
}

func timestampSuffix() string {
	return time.Now().UTC().Format("20060102T150405")
}
