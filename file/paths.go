package file

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LegacyLabelPath is the detached PDS3 label of a data file: the same name
// with the extension replaced by .LBL, or .lbl when the data file extension
// is lower case.
func LegacyLabelPath(data string) string {
	ext := filepath.Ext(data)
	lbl := ".LBL"
	if ext != "" && ext == strings.ToLower(ext) {
		lbl = ".lbl"
	}
	return strings.TrimSuffix(data, ext) + lbl
}

// OutputPath is where the PDS4 label of a data file goes. Without an output
// root it sits next to the data file with an .xml extension. Otherwise the
// path of data relative to inputRoot is recreated under outputRoot.
func OutputPath(data, inputRoot, outputRoot string) (string, error) {
	name := strings.TrimSuffix(data, filepath.Ext(data)) + ".xml"
	if outputRoot == "" {
		return name, nil
	}
	rel, err := filepath.Rel(inputRoot, name)
	if err != nil {
		return "", errors.Wrapf(err, "placing %s under %s", data, outputRoot)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%s is not below %s", data, inputRoot)
	}
	return filepath.Join(outputRoot, rel), nil
}
