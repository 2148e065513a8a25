// Package instrument holds the Mappers that turn PDS3 labels of the Cassini
// ISS, UVIS, VIMS and CIRS instruments into template dictionaries.
package instrument

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit"
	"github.com/rms-node/pds4kit/label"
	"github.com/rms-node/pds4kit/pdstime"
	"github.com/rms-node/pds4kit/target"
	"github.com/rms-node/pds4kit/template"
)

// Host is the INSTRUMENT_HOST value of every Cassini product.
const Host = "Cassini Orbiter"

// Common holds what every instrument mapper needs.
type Common struct {
	// Bundle and Collection form the logical identifiers of generated
	// products. Bundle defaults to cassini_<instrument> and Collection to
	// data_raw.
	Bundle     string
	Collection string
	Resolver   *target.Resolver
}

var defaultResolver = sync.OnceValue(func() *target.Resolver {
	return target.NewResolver(target.NewTables(), nil)
})

func (c *Common) resolver() *target.Resolver {
	if c.Resolver == nil {
		return defaultResolver()
	}
	return c.Resolver
}

// missingTimes are the values labels use for an unknown time. Such times are
// left out of the dictionary and of its LABEL copy.
var missingTimes = map[string]bool{"": true, "UNK": true, "UNKNOWN": true, "N/A": true, "NULL": true}

// seed builds the dictionary fields shared by all instruments: the flattened
// label, file names, the logical identifier, normalized times, targets and
// purpose.
func (c *Common) seed(l *label.Label, item *pds4kit.Item, instrument string) (template.Dict, error) {
	flat := l.AsMap()
	dict := make(template.Dict, len(flat)+16)
	for k, v := range flat {
		dict[k] = v
	}
	dict["LABEL"] = flat
	dict["INSTRUMENT"] = instrument
	dict["INSTRUMENT_HOST"] = Host

	base := filepath.Base(item.DataPath)
	productID := strings.TrimSuffix(base, filepath.Ext(base))
	dict["FILE_NAME"] = base
	dict["LABEL_FILE_NAME"] = base
	if item.LabelPath != "" {
		dict["LABEL_FILE_NAME"] = filepath.Base(item.LabelPath)
	}
	dict["PRODUCT_NAME"] = productID

	bundle, collection := c.Bundle, c.Collection
	if bundle == "" {
		bundle = "cassini_" + strings.ToLower(instrument)
	}
	if collection == "" {
		collection = "data_raw"
	}
	dict["BUNDLE"] = bundle
	dict["COLLECTION"] = collection
	dict["LOGICAL_ID"] = "urn:nasa:pds:" + bundle + ":" + collection + ":" + template.LIDSuffix(productID)

	for _, key := range []string{"START_TIME", "STOP_TIME"} {
		s, ok := l.String(key)
		if !ok {
			continue
		}
		if missingTimes[strings.ToUpper(strings.TrimSpace(s))] {
			delete(dict, key)
			delete(flat, key)
			continue
		}
		t, err := pdstime.Parse(s)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", key)
		}
		dict[key] = pdstime.Format(t)
		dict[strings.TrimSuffix(key, "_TIME")+"_ET"] = pdstime.ET(t)
	}

	in := target.Input{
		TargetName:    first(l.Strings("TARGET_NAME")),
		Description:   str(l, "DESCRIPTION"),
		ObservationID: str(l, "OBSERVATION_ID"),
		SequenceTitle: str(l, "SEQUENCE_TITLE"),
		ShutterModeID: str(l, "SHUTTER_MODE_ID"),
	}
	r := c.resolver()
	recs := r.Resolve(in)
	targets := make([]template.Dict, len(recs))
	var naifIDs []int
	for i, rec := range recs {
		targets[i] = targetDict(r.Tables, rec)
		if id, ok := r.Tables.NAIFID(rec.Name); ok {
			naifIDs = append(naifIDs, id)
		}
	}
	dict["TARGETS"] = targets
	dict["PRIMARY_TARGET"] = targets[0]
	dict["NAIF_IDS"] = naifIDs
	dict["PURPOSE"] = r.Purpose(in, recs)
	return dict, nil
}

func targetDict(tables *target.Tables, rec *target.Record) template.Dict {
	d := template.Dict{
		"name":         rec.Name,
		"type":         rec.Type,
		"lid":          rec.LID,
		"primary_body": rec.PrimaryBody,
		"alt_names":    rec.AltNames,
		"naif_id":      nil,
	}
	if id, ok := tables.NAIFID(rec.Name); ok {
		d["naif_id"] = id
	}
	return d
}

func str(l *label.Label, key string) string {
	s, _ := l.String(key)
	return s
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// New returns the mapper for an instrument: iss, uvis, vims or cirs.
func New(name string, c Common) (pds4kit.Mapper, error) {
	switch strings.ToLower(name) {
	case "iss":
		return &ISS{Common: c}, nil
	case "uvis":
		return &UVIS{Common: c}, nil
	case "vims":
		return &VIMS{Common: c}, nil
	case "cirs":
		return &CIRS{Common: c}, nil
	}
	return nil, errors.Errorf("unknown instrument %q", name)
}

// Funcs returns template hooks that look values up in the target tables
// and the ISS filter tables.
func Funcs(tables *target.Tables) template.FuncMap {
	return template.FuncMap{
		"naif_id": func(args ...interface{}) (interface{}, error) {
			name, err := oneString(args)
			if err != nil {
				return nil, err
			}
			if id, ok := tables.NAIFID(name); ok {
				return id, nil
			}
			return nil, nil
		},
		"target_lid": func(args ...interface{}) (interface{}, error) {
			name, err := oneString(args)
			if err != nil {
				return nil, err
			}
			rec, ok := tables.Lookup(name)
			if !ok {
				return nil, errors.Errorf("unknown target %q", name)
			}
			return rec.LID, nil
		},
		"iss_wavelength_range": func(args ...interface{}) (interface{}, error) {
			if len(args) != 3 {
				return nil, errors.Errorf("takes 3 arguments, got %d", len(args))
			}
			strs := make([]string, 3)
			for i, a := range args {
				s, ok := a.(string)
				if !ok {
					return nil, errors.Errorf("argument %d is not a string", i+1)
				}
				strs[i] = s
			}
			return ISSWavelengthRange(strs[0], strs[1], strs[2])
		},
	}
}

func oneString(args []interface{}) (string, error) {
	if len(args) != 1 {
		return "", errors.Errorf("takes 1 argument, got %d", len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return "", errors.New("argument is not a string")
	}
	return s, nil
}
