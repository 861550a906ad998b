package transcript

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/termrelay/internal/errors"
)

// DefaultPattern matches the session logs most emulators write.
const DefaultPattern = "*.log"

// Locate returns the path of the most recently modified regular file in dir
// whose name matches pattern. Matching ignores case. Ties on modification time
// go to the lexically greater name.
func Locate(fs afero.Fs, dir, pattern string) (string, error) {
	path, _, err := locate(fs, dir, pattern)
	return path, err
}

func locate(fs afero.Fs, dir, pattern string) (string, os.FileInfo, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", nil, errors.NewSourceError("cannot read transcript directory", errors.Join(errors.ErrSourceNotFound, err)).
			WithDir(dir)
	}

	pattern = strings.ToLower(pattern)
	var best os.FileInfo
	for _, fi := range entries {
		if !fi.Mode().IsRegular() {
			continue
		}
		ok, err := filepath.Match(pattern, strings.ToLower(fi.Name()))
		if err != nil {
			return "", nil, errors.NewSourceError("invalid transcript pattern", errors.Join(errors.ErrInvalidInput, err)).
				WithDir(dir)
		}
		if !ok {
			continue
		}
		if best == nil || newer(fi, best) {
			best = fi
		}
	}

	if best == nil {
		return "", nil, errors.NewSourceError("no file matching "+pattern, errors.ErrSourceNotFound).WithDir(dir)
	}
	return filepath.Join(dir, best.Name()), best, nil
}

func newer(a, b os.FileInfo) bool {
	if a.ModTime().Equal(b.ModTime()) {
		return a.Name() > b.Name()
	}
	return a.ModTime().After(b.ModTime())
}
