// Package pathsafety rejects symlinks and traversal, and confines writes
// under a base directory. Every filesystem-touching component routes its
// paths through Validate before reading or writing.
package pathsafety

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/model"
)

// Mode selects which checks Validate applies.
type Mode int

const (
	// ModeRead requires the target to exist; parents are still checked
	// for symlinks.
	ModeRead Mode = iota
	// ModeWrite permits the target and any of its parent directories to
	// not exist yet; every existing component is checked for symlinks.
	ModeWrite
)

// Validate resolves path to its canonical form and fails with a
// model.Error of KindInvalidPath when:
//   - baseDir is non-empty and the resolved path escapes it
//   - any path component (including parents) is a symlink
//   - the target is a device or FIFO special file
//
// It returns the cleaned, absolute path on success.
func Validate(path string, baseDir string, mode Mode) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", model.NewError(model.KindInvalidPath, path, errors.Wrap(err, "resolve absolute path"))
	}
	abs = filepath.Clean(abs)

	if err := checkNoSymlinkAncestor(abs); err != nil {
		return "", model.NewError(model.KindInvalidPath, path, err)
	}

	if baseDir != "" {
		absBase, err := filepath.Abs(baseDir)
		if err != nil {
			return "", model.NewError(model.KindInvalidPath, path, errors.Wrap(err, "resolve base dir"))
		}
		absBase = filepath.Clean(absBase)
		if !isWithin(absBase, abs) {
			return "", model.NewError(model.KindInvalidPath, path, errors.Errorf("path escapes base dir %s", absBase))
		}
	}

	if info, err := os.Lstat(abs); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return "", model.NewError(model.KindInvalidPath, path, errors.New("target itself is a symlink"))
		}
		if isDeviceOrFIFO(info) {
			return "", model.NewError(model.KindInvalidPath, path, errors.New("target is a device or FIFO"))
		}
	} else if mode == ModeRead {
		return "", model.NewError(model.KindInvalidPath, path, errors.Wrap(err, "stat"))
	}

	return abs, nil
}

// isWithin reports whether child is base or a descendant of base, using
// pure path-string comparison of already-cleaned absolute paths (no extra
// symlink resolution here — that happens in checkNoSymlinkAncestor).
func isWithin(base, child string) bool {
	if base == child {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// checkNoSymlinkAncestor walks every path component from the root down and
// fails if any parent component (not just the final one) is a symlink.
// Resolving only the final component is not sufficient: a symlinked
// ancestor directory can still redirect a write outside the base.
func checkNoSymlinkAncestor(abs string) error {
	vol := filepath.VolumeName(abs)
	rest := strings.TrimPrefix(abs, vol)
	rest = strings.TrimPrefix(rest, string(filepath.Separator))
	parts := strings.Split(rest, string(filepath.Separator))

	cur := vol + string(filepath.Separator)
	for i, part := range parts {
		if part == "" {
			continue
		}
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if err != nil {
			// Missing components are fine for write targets; only an
			// existing symlink is a violation.
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "stat %s", cur)
		}
		isLast := i == len(parts)-1
		if info.Mode()&os.ModeSymlink != 0 && !isLast {
			return errors.Errorf("parent component %s is a symlink", cur)
		}
	}
	return nil
}

func isDeviceOrFIFO(info os.FileInfo) bool {
	m := info.Mode()
	return m&(os.ModeDevice|os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0
}

// unsafeSubstrings are unicode look-alikes of the path separator that a
// naively-decoded archive member name might smuggle a separator in as,
// such as the division slash below.
var unsafeSubstrings = []string{
	"∕", // division slash
	"／", // fullwidth solidus
	"⁄", // fraction slash
}

// ValidateArchiveMemberName rejects a member name that normalizes to a
// traversal: "..", a drive letter, an absolute path, or a disguised path
// separator. It does not touch the filesystem — archive members are
// virtual until extracted.
func ValidateArchiveMemberName(name string) error {
	if name == "" {
		return errors.New("empty archive member name")
	}
	for _, u := range unsafeSubstrings {
		if strings.Contains(name, u) {
			return errors.Errorf("archive member %q contains a disguised path separator", name)
		}
	}
	cleaned := filepath.ToSlash(filepath.Clean(name))
	if filepath.IsAbs(name) || strings.HasPrefix(cleaned, "/") {
		return errors.Errorf("archive member %q is an absolute path", name)
	}
	if len(name) >= 2 && name[1] == ':' {
		return errors.Errorf("archive member %q carries a drive letter", name)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return errors.Errorf("archive member %q traverses outside its container", name)
	}
	return nil
}

// ArchiveMemberIsSymlink reports whether the unix file-mode bits encoded
// in a zip entry's external attributes mark the member as a symlink.
// Archive members declared as symlinks are rejected rather than extracted.
func ArchiveMemberIsSymlink(externalAttrs uint32) bool {
	const unixModeShift = 16
	const sIFLNK = 0xA000
	const sIFMT = 0xF000
	mode := externalAttrs >> unixModeShift
	return mode&sIFMT == sIFLNK
}
