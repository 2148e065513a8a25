package file

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
)

// DefaultExtensions are the data file extensions a Source picks out of
// directories when none are given.
var DefaultExtensions = []string{".img", ".dat", ".qub"}

// Source is a pds4kit.Source which finds data files on disk. Directories are
// walked recursively in lexical order, so two runs over the same tree return
// the same items in the same order.
type Source struct {
	paths      []string
	extensions []string
	outputRoot string

	items   []*pds4kit.Item
	itemIdx *uint64
}

// SrcOption is a functional option for the file Source.
type SrcOption func(s *Source) error

// OptSrcPaths adds files or directories to search for data files. A file is
// used as given regardless of its extension.
func OptSrcPaths(paths ...string) SrcOption {
	return func(s *Source) error {
		s.paths = append(s.paths, paths...)
		return nil
	}
}

// OptSrcExtensions sets the data file extensions to look for in directories.
// Matching ignores case, and the leading dot is optional.
func OptSrcExtensions(exts ...string) SrcOption {
	return func(s *Source) error {
		s.extensions = s.extensions[:0]
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions = append(s.extensions, ext)
		}
		if len(s.extensions) == 0 {
			return errors.New("no extensions given")
		}
		return nil
	}
}

// OptSrcOutputRoot puts generated labels under dir, mirroring the layout
// below each searched directory, instead of next to the data files.
func OptSrcOutputRoot(dir string) SrcOption {
	return func(s *Source) error {
		s.outputRoot = dir
		return nil
	}
}

// NewSource gets a new file Source. All of the paths are searched up front;
// a missing path is an error.
func NewSource(opts ...SrcOption) (*Source, error) {
	idx := uint64(0)
	s := &Source{
		extensions: append([]string(nil), DefaultExtensions...),
		itemIdx:    &idx,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	for _, p := range s.paths {
		if err := s.add(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Source) add(pathname string) error {
	info, err := os.Stat(pathname)
	if err != nil {
		return errors.Wrap(err, "statting path")
	}
	if !info.IsDir() {
		return s.addFile(filepath.Dir(pathname), pathname)
	}
	err = filepath.Walk(pathname, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !s.wanted(path) {
			return nil
		}
		return s.addFile(pathname, path)
	})
	return errors.Wrapf(err, "walking %s", pathname)
}

func (s *Source) wanted(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (s *Source) addFile(root, path string) error {
	out, err := OutputPath(path, root, s.outputRoot)
	if err != nil {
		return err
	}
	s.items = append(s.items, &pds4kit.Item{
		DataPath:   path,
		LabelPath:  LegacyLabelPath(path),
		OutputPath: out,
	})
	return nil
}

// Len is the number of items found.
func (s *Source) Len() int { return len(s.items) }

// Record implements pds4kit.Source. It is safe to call from several
// goroutines.
func (s *Source) Record() (*pds4kit.Item, error) {
	idx := atomic.AddUint64(s.itemIdx, 1) - 1
	if int(idx) >= len(s.items) {
		return nil, io.EOF
	}
	return s.items[idx], nil
}
