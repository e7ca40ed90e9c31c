package hashutil

import (
	"os"

	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/model"
)

// HashFile opens path and hashes its contents with Hash. On cancellation
// or I/O error it leaves no partial state: the file handle is closed and
// nothing is written by the caller.
func HashFile(path string, chunkSize int, token *cancelctl.Token) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, model.NewError(model.KindIo, path, errors.Wrap(err, "open"))
	}
	defer f.Close()

	res, err := Hash(f, chunkSize, token)
	if err != nil {
		if e, ok := err.(*model.Error); ok {
			e.Path = path
		}
		return Result{}, err
	}
	return res, nil
}
