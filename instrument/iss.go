package instrument

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/label"
	"github.com/rms-node/pds4kit/template"
	"github.com/rms-node/pds4kit/vicar"
)

// ISS maps labels of the Imaging Science Subsystem cameras.
type ISS struct {
	Common
}

// Map implements pds4kit.Mapper. Besides the common fields it sets CAMERA,
// FILTER1, FILTER2 and WAVELENGTH_RANGES. When the PDS3 label lacks the
// camera or filters they are read from the VICAR header of the image.
func (m *ISS) Map(l *label.Label, item *pds4kit.Item) (template.Dict, error) {
	dict, err := m.seed(l, item, "ISS")
	if err != nil {
		return nil, err
	}
	cameraID, _ := l.String("INSTRUMENT_ID")
	filters := l.Strings("FILTER_NAME")
	if cameraID == "" || len(filters) != 2 {
		h, err := readVicar(item.DataPath)
		if err != nil {
			return nil, errors.Wrap(err, "looking for camera and filters")
		}
		if cameraID == "" {
			cameraID, _ = h.String("INSTRUMENT_ID")
		}
		if len(filters) != 2 {
			filters = h.Strings("FILTER_NAME")
		}
		dict["VICAR"] = h.AsMap()
	}
	if len(filters) != 2 {
		return nil, errors.Errorf("expected two filter names, got %v", filters)
	}
	camera, err := ParseCamera(cameraID)
	if err != nil {
		return nil, err
	}
	wavelength, err := ISSWavelengthRange(cameraID, filters[0], filters[1])
	if err != nil {
		return nil, err
	}
	dict["CAMERA"] = string(camera)
	dict["FILTER1"] = filters[0]
	dict["FILTER2"] = filters[1]
	dict["WAVELENGTH_RANGES"] = []string{wavelength}
	return dict, nil
}

func readVicar(path string) (*vicar.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()
	return vicar.ReadHeader(f)
}
