package pds4kit

import (
	"bytes"
	"encoding/xml"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/rms-node/pds4kit/template"
)

// TemplateRenderer renders labels by expanding a compiled template.
type TemplateRenderer struct {
	Template *template.Template
	Funcs    template.FuncMap
	// CheckXML rejects output that is not well-formed XML.
	CheckXML bool
}

// NewTemplateRenderer compiles the template file at path. Hooks in funcs are
// added to the default set, and expansion errors are logged to log.
func NewTemplateRenderer(path string, funcs template.FuncMap, log Logger) (*TemplateRenderer, error) {
	text, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading template")
	}
	tmpl, err := template.Compile(path, string(text))
	if err != nil {
		return nil, errors.Wrap(err, "compiling template")
	}
	if log != nil {
		tmpl.Log = log
	}
	return &TemplateRenderer{
		Template: tmpl,
		Funcs:    template.DefaultFuncs().Merge(funcs),
		CheckXML: true,
	}, nil
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(dict template.Dict) ([]byte, error) {
	out, err := r.Template.Expand(dict, r.Funcs)
	if err != nil {
		return nil, err
	}
	data := []byte(out)
	if r.CheckXML {
		if err := wellFormed(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func wellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "generated label is not well-formed XML")
		}
	}
}
