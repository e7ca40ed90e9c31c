package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/retronian/romsorter/internal/config"
)

// walkTree enumerates every candidate file under root, honoring
// ignore_extensions and follow_symlinks, and folding a recognized PS3
// game directory into a single synthetic entry rather than recursing
// into it.
func walkTree(root string, cfg *config.ScannerConfig) ([]string, int, error) {
	ignored := map[string]bool{}
	followSymlinks := false
	if cfg != nil {
		for _, e := range cfg.IgnoreExtensions {
			ignored[strings.ToLower(e)] = true
		}
		followSymlinks = cfg.FollowSymlinks
	}

	var paths []string
	var walkErrors int

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted:            true,
		FollowSymbolicLinks: followSymlinks,
		Callback: func(path string, dirent *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			isDir, err := dirent.IsDirOrSymlinkToDir()
			if err != nil {
				walkErrors++
				return nil //nolint:nilerr // best-effort walk
			}
			if isDir {
				if isPS3GameDir(path) {
					paths = append(paths, path)
					return filepath.SkipDir
				}
				return nil
			}
			if ignored[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			paths = append(paths, path)
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			walkErrors++
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, walkErrors, err
	}
	return paths, walkErrors, nil
}

// isPS3GameDir reports whether dir is the root of an extracted PS3 game:
// it contains PS3_GAME/PARAM.SFO or USRDIR/EBOOT.BIN.
func isPS3GameDir(dir string) bool {
	if fileExists(filepath.Join(dir, "PS3_GAME", "PARAM.SFO")) {
		return true
	}
	if fileExists(filepath.Join(dir, "USRDIR", "EBOOT.BIN")) {
		return true
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
