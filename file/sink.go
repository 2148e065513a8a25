package file

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
)

// Sink is a pds4kit.Sink which writes labels to each item's OutputPath.
// Labels are written to a temporary file and renamed into place, so an
// interrupted run never leaves a truncated label behind.
type Sink struct {
	// Perm is the mode of new labels. Zero means 0644.
	Perm os.FileMode
}

// Exists implements pds4kit.Sink.
func (s *Sink) Exists(item *pds4kit.Item) (bool, error) {
	_, err := os.Stat(item.OutputPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "statting label")
}

// Write implements pds4kit.Sink.
func (s *Sink) Write(item *pds4kit.Item, data []byte) (err error) {
	if item.OutputPath == "" {
		return errors.Errorf("no output path for %s", item.DataPath)
	}
	dir := filepath.Dir(item.OutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "making label directory")
	}
	f, err := ioutil.TempFile(dir, "."+filepath.Base(item.OutputPath))
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		return errors.Wrap(err, "writing label")
	}
	perm := s.Perm
	if perm == 0 {
		perm = 0644
	}
	if err = f.Chmod(perm); err != nil {
		return errors.Wrap(err, "setting label mode")
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "closing label")
	}
	if err = os.Rename(f.Name(), item.OutputPath); err != nil {
		return errors.Wrap(err, "moving label into place")
	}
	return nil
}
