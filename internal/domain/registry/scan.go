package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/types"
)

// ManifestPattern matches manifest files relative to the widgets directory
const ManifestPattern = "*/manifest.{json,yaml,yml}"

// Rejection records a manifest that failed to load
type Rejection struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ScanResult is the outcome of one directory scan
type ScanResult struct {
	Accepted []*types.WidgetDescriptor `json:"accepted"`
	Rejected []Rejection               `json:"rejected"`
}

// Scan finds and loads every manifest under dir. Only an unreadable root
// is an error; bad manifests end up in Rejected. A widget directory holding
// several manifests uses the first by name (json before yaml).
func Scan(ctx context.Context, dir string) (*ScanResult, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ScanResult{}, nil
		}
		return nil, err
	}

	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped like malformed manifests
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if strings.Count(rel, "/") >= 1 {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := doublestar.Match(ManifestPattern, rel); ok {
			mu.Lock()
			paths = append(paths, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	res := &ScanResult{}
	seenDir := make(map[string]bool)
	seenID := make(map[string]string)
	for _, p := range paths {
		widgetDir := filepath.Dir(p)
		if seenDir[widgetDir] {
			continue
		}
		seenDir[widgetDir] = true

		desc, err := Load(p)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Path: p, Reason: err.Error()})
			continue
		}
		if first, dup := seenID[desc.ID]; dup {
			res.Rejected = append(res.Rejected, Rejection{Path: p, Reason: "duplicate widget id " + desc.ID + " (first in " + first + ")"})
			continue
		}
		seenID[desc.ID] = p
		res.Accepted = append(res.Accepted, desc)
	}
	return res, nil
}
