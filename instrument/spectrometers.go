package instrument

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/label"
	"github.com/rms-node/pds4kit/qube"
	"github.com/rms-node/pds4kit/template"
)

var (
	uvisChannels = map[string][]string{
		"FUV":  {Ultraviolet},
		"EUV":  {Ultraviolet},
		"HSP":  {Ultraviolet},
		"HDAC": {Ultraviolet},
	}
	vimsChannels = map[string][]string{
		"VIS": {Visible, NearInfrared},
		"IR":  {NearInfrared, Infrared},
	}
	cirsChannels = map[string][]string{
		"FP1": {FarInfrared},
		"FP3": {Infrared},
		"FP4": {Infrared},
	}
)

// channelRanges merges the wavelength ranges of the given channels.
func channelRanges(table map[string][]string, channels []string) ([]string, error) {
	var all []string
	for _, c := range channels {
		ranges, ok := table[c]
		if !ok {
			return nil, errors.Errorf("unknown channel %q", c)
		}
		all = append(all, ranges...)
	}
	return sortedRanges(all...), nil
}

func allChannels(table map[string][]string) []string {
	ret := make([]string, 0, len(table))
	for c := range table {
		ret = append(ret, c)
	}
	sort.Strings(ret)
	return ret
}

// UVIS maps labels of the Ultraviolet Imaging Spectrograph.
type UVIS struct {
	Common
}

// uvisPrefixes is checked in order; HDAC must precede HSP.
var uvisPrefixes = []string{"HDAC", "HSP", "FUV", "EUV"}

// Map implements pds4kit.Mapper. The channel comes from the PRODUCT_ID, or
// the file name when that is absent, which starts with FUV, EUV, HSP or
// HDAC.
func (m *UVIS) Map(l *label.Label, item *pds4kit.Item) (template.Dict, error) {
	dict, err := m.seed(l, item, "UVIS")
	if err != nil {
		return nil, err
	}
	id, ok := l.String("PRODUCT_ID")
	if !ok {
		id = dict["PRODUCT_NAME"].(string)
	}
	id = strings.ToUpper(id)
	channel := ""
	for _, p := range uvisPrefixes {
		if strings.HasPrefix(id, p) {
			channel = p
			break
		}
	}
	if channel == "" {
		return nil, errors.Errorf("no UVIS channel in product id %q", id)
	}
	ranges, err := channelRanges(uvisChannels, []string{channel})
	if err != nil {
		return nil, err
	}
	dict["CHANNEL"] = channel
	dict["WAVELENGTH_RANGES"] = ranges
	return dict, nil
}

// VIMS maps labels of the Visual and Infrared Mapping Spectrometer.
type VIMS struct {
	Common
}

// Map implements pds4kit.Mapper. The cube layout fills CORE_SAMPLES,
// CORE_LINES, CORE_BANDS, AXIS_ORDER and CORE_ITEM_BYTES. The channel comes
// from CHANNEL_ID when present and from the band count otherwise: 96 bands
// are the visible channel, 256 the infrared one, and anything else both.
func (m *VIMS) Map(l *label.Label, item *pds4kit.Item) (template.Dict, error) {
	dict, err := m.seed(l, item, "VIMS")
	if err != nil {
		return nil, err
	}
	lay, err := qube.NewLayout(l)
	if err != nil {
		return nil, errors.Wrap(err, "reading cube layout")
	}
	axes := map[string]int64{}
	for i, name := range lay.Axes {
		axes[strings.ToUpper(name)] = lay.Core[i]
	}
	dict["CORE_SAMPLES"] = axes["SAMPLE"]
	dict["CORE_LINES"] = axes["LINE"]
	dict["CORE_BANDS"] = axes["BAND"]
	dict["AXIS_ORDER"] = lay.Order()
	dict["CORE_ITEM_BYTES"] = lay.CoreBytes
	dict["CORE_OFFSET"] = lay.Offset

	var channels []string
	if c, ok := l.String("CHANNEL_ID"); ok && c != "N/A" {
		channels = []string{strings.ToUpper(c)}
	} else {
		switch axes["BAND"] {
		case 96:
			channels = []string{"VIS"}
		case 256:
			channels = []string{"IR"}
		default:
			channels = allChannels(vimsChannels)
		}
	}
	ranges, err := channelRanges(vimsChannels, channels)
	if err != nil {
		return nil, err
	}
	dict["CHANNELS"] = channels
	dict["WAVELENGTH_RANGES"] = ranges
	return dict, nil
}

// CIRS maps labels of the Composite Infrared Spectrometer.
type CIRS struct {
	Common
}

// Map implements pds4kit.Mapper. DETECTOR_ID names the focal planes; when it
// is absent all three are assumed.
func (m *CIRS) Map(l *label.Label, item *pds4kit.Item) (template.Dict, error) {
	dict, err := m.seed(l, item, "CIRS")
	if err != nil {
		return nil, err
	}
	var channels []string
	for _, d := range l.Strings("DETECTOR_ID") {
		if d = strings.ToUpper(d); d != "" && d != "N/A" {
			channels = append(channels, d)
		}
	}
	if len(channels) == 0 {
		channels = allChannels(cirsChannels)
	}
	ranges, err := channelRanges(cirsChannels, channels)
	if err != nil {
		return nil, err
	}
	dict["CHANNELS"] = channels
	dict["WAVELENGTH_RANGES"] = ranges
	return dict, nil
}
