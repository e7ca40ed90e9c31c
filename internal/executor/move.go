package executor

import (
	"errors"
	"os"
	"syscall"

	pkgerrors "github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/model"
)

// moveFile tries an in-place rename first; on EXDEV (source and
// destination on different filesystems) it falls back to copy-then-
// delete-source, still cancellable and leaving no orphan if interrupted.
func moveFile(src, dst string, chunkSize int, token *cancelctl.Token) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return model.NewError(model.KindIo, dst, pkgerrors.Wrap(err, "rename"))
	}

	if err := copyFile(src, dst, chunkSize, token); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return model.NewError(model.KindIo, src, pkgerrors.Wrap(err, "remove source after cross-device move"))
	}
	return nil
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}
