package instrument

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// PDS4 wavelength range values, in increasing wavelength.
const (
	Ultraviolet  = "Ultraviolet"
	Visible      = "Visible"
	NearInfrared = "Near Infrared"
	Infrared     = "Infrared"
	FarInfrared  = "Far Infrared"
)

var rangeOrder = map[string]int{
	Ultraviolet:  0,
	Visible:      1,
	NearInfrared: 2,
	Infrared:     3,
	FarInfrared:  4,
}

// Effective wavelengths in nm of the ISS filters.
var (
	wideWavelengths = map[string]float64{
		"CL1": 634, "CL2": 634,
		"VIO": 420, "BL1": 460, "GRN": 567, "RED": 648, "HAL": 656,
		"MT2": 728, "CB2": 752, "IR1": 742, "IRP0": 746, "IRP90": 746,
		"IR2": 853, "MT3": 890, "IR3": 918, "CB3": 939, "IR4": 1001, "IR5": 1028,
	}
	narrowWavelengths = map[string]float64{
		"CL1": 651, "CL2": 651,
		"UV1": 258, "UV2": 298, "UV3": 338,
		"BL2": 440, "BL1": 451, "GRN": 568, "RED": 650, "HAL": 656,
		"P0": 617, "P60": 617, "P120": 617, "MT1": 619, "CB1": 619,
		"MT2": 727, "CB2": 750, "IR1": 752, "IRP0": 746, "IRP90": 746,
		"IR2": 862, "MT3": 889, "IR3": 930, "CB3": 938, "IR4": 1002,
	}
)

// Camera names an ISS camera.
type Camera string

// ISS cameras.
const (
	NarrowAngle Camera = "Narrow Angle Camera"
	WideAngle   Camera = "Wide Angle Camera"
)

// ParseCamera accepts the INSTRUMENT_ID values ISSNA and ISSWA as well as
// NAC, WAC, NARROW and WIDE.
func ParseCamera(s string) (Camera, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ISSNA", "NAC", "NARROW", "ISS_NAC", "NARROW ANGLE CAMERA":
		return NarrowAngle, nil
	case "ISSWA", "WAC", "WIDE", "ISS_WAC", "WIDE ANGLE CAMERA":
		return WideAngle, nil
	}
	return "", errors.Errorf("unknown ISS camera %q", s)
}

// ISSWavelengthRange classifies an ISS exposure by the average effective
// wavelength of its two filters: below 400 nm is Ultraviolet, up to 651 nm
// is Visible, and anything longer is Near Infrared.
func ISSWavelengthRange(camera, filter1, filter2 string) (string, error) {
	cam, err := ParseCamera(camera)
	if err != nil {
		return "", err
	}
	table := narrowWavelengths
	if cam == WideAngle {
		table = wideWavelengths
	}
	var sum float64
	for _, f := range []string{filter1, filter2} {
		w, ok := table[strings.ToUpper(strings.TrimSpace(f))]
		if !ok {
			return "", errors.Errorf("unknown %s filter %q", cam, f)
		}
		sum += w
	}
	switch avg := sum / 2; {
	case avg < 400:
		return Ultraviolet, nil
	case avg <= 651:
		return Visible, nil
	}
	return NearInfrared, nil
}

// sortedRanges returns the distinct ranges in increasing wavelength.
func sortedRanges(ranges ...string) []string {
	seen := make(map[string]bool, len(ranges))
	ret := make([]string, 0, len(ranges))
	for _, r := range ranges {
		if !seen[r] {
			seen[r] = true
			ret = append(ret, r)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return rangeOrder[ret[i]] < rangeOrder[ret[j]] })
	return ret
}
