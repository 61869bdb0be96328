package rules

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

func parseYAML(name string, data []byte) (*document, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Path: name, Message: "failed to parse rule file", Err: err}
	}
	if doc.Freeze == nil {
		return nil, &LoadError{Code: ErrCodeNoRoot, Path: name, Message: "missing freeze root element"}
	}
	return &doc, nil
}

func parseCUE(name string, data []byte) (*document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Path: name, Message: "failed to compile rule file", Err: formatCUEError(err)}
	}

	root := v.LookupPath(cue.ParsePath("freeze"))
	if !root.Exists() {
		return nil, &LoadError{Code: ErrCodeNoRoot, Path: name, Message: "missing freeze root element"}
	}

	var fd freezeDoc
	if err := root.Decode(&fd); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Path: name, Message: "failed to decode rules", Err: formatCUEError(err)}
	}
	return &document{Freeze: &fd}, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 && positions[0].IsValid() {
		p := positions[0]
		return fmt.Errorf("%s:%d:%d: %s", p.Filename(), p.Line(), p.Column(), first.Error())
	}
	return first
}

// Legacy device rule format. Events are keyed by a stringid attribute and
// samePackage is the literal string "true".
type xmlFreeze struct {
	XMLName xml.Name
	Rules   struct {
		Rule []xmlRule `xml:"rule"`
	} `xml:"rules"`
}

type xmlRule struct {
	Domain   string `xml:"domain,attr"`
	StringID string `xml:"stringid,attr"`
	Links    struct {
		Events []xmlEvent `xml:"event"`
	} `xml:"links"`
}

type xmlEvent struct {
	Domain   string    `xml:"domain,attr"`
	StringID string    `xml:"stringid,attr"`
	Window   string    `xml:"window,attr"`
	Result   xmlResult `xml:"result"`
}

type xmlResult struct {
	Code        string `xml:"code,attr"`
	Scope       string `xml:"scope,attr"`
	SamePackage string `xml:"samePackage,attr"`
	Action      string `xml:"action,attr"`
}

func parseXML(name string, data []byte) (*document, error) {
	var xf xmlFreeze
	if err := xml.Unmarshal(data, &xf); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Path: name, Message: "failed to parse rule file", Err: err}
	}
	if xf.XMLName.Local != "freeze" {
		return nil, &LoadError{Code: ErrCodeNoRoot, Path: name, Message: "missing freeze root element"}
	}

	fd := &freezeDoc{Rules: make([]ruleDoc, 0, len(xf.Rules.Rule))}
	for _, xr := range xf.Rules.Rule {
		rd := ruleDoc{Domain: xr.Domain, EventID: xr.StringID}
		for _, xe := range xr.Links.Events {
			window, err := parseInt(xe.Window)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeInvalid, Path: name, Message: "bad window on " + xe.StringID, Err: err}
			}
			code, err := parseUint(xe.Result.Code)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeInvalid, Path: name, Message: "bad result code on " + xe.StringID, Err: err}
			}
			rd.Links = append(rd.Links, linkDoc{
				Domain:  xe.Domain,
				EventID: xe.StringID,
				Window:  window,
				Result: resultDoc{
					Code:        code,
					Scope:       xe.Result.Scope,
					SamePackage: xe.Result.SamePackage == "true",
					Action:      xe.Result.Action,
				},
			})
		}
		fd.Rules = append(fd.Rules, rd)
	}
	return &document{Freeze: fd}, nil
}

// Missing numeric attributes read as zero.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
