// Package cueset loads cue files into dataset arguments.
//
// A cue file is a list of records, either at the top level or under a
// "cues" field. Each record has a key, an optional interval and optional
// data:
//
//	cues:
//	  - key: intro
//	    interval: [0, 10]        # [low, high)
//	  - key: chapter
//	    interval: [10, 20, true, true]
//	  - key: marker
//	    interval: 15             # singular
//	  - key: credits
//	    interval: "[20,inf)"
//	    data: {title: Credits}
//
// YAML (.yaml, .yml) and JSON (.json) files are decoded with yaml.v3. CUE
// files (.cue) are unified with an embedded schema and exported before
// decoding, so CUE constraints and references are available to authors.
package cueset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/webtiming/timingsrc/internal/dataset"
	"github.com/webtiming/timingsrc/internal/interval"
)

// Format is a cue file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatOf derives the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("%s: unsupported cue file extension", path)
	}
}

// Error reports an invalid cue file or record.
type Error struct {
	Path string
	// Index is the record position, -1 for file level errors.
	Index   int
	Key     string
	Message string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Index >= 0 {
		fmt.Fprintf(&b, ": cue %d", e.Index)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " (key=%q)", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// IsError reports whether err is a cue file error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Load reads the cue file at path.
func Load(path string) ([]dataset.Arg, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cue file: %w", err)
	}
	return Decode(data, format, path)
}

// Decode parses a cue file body. name is used in error messages.
func Decode(data []byte, format Format, name string) ([]dataset.Arg, error) {
	switch format {
	case FormatYAML, FormatJSON:
		return decodeDocument(data, name)
	case FormatCUE:
		exported, err := exportCUE(data, name)
		if err != nil {
			return nil, err
		}
		return decodeDocument(exported, name)
	default:
		return nil, fmt.Errorf("%s: unsupported format %q", name, format)
	}
}

func decodeDocument(data []byte, name string) ([]dataset.Arg, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Path: name, Index: -1, Message: err.Error()}
	}
	var list []any
	switch v := doc.(type) {
	case nil:
		return []dataset.Arg{}, nil
	case []any:
		list = v
	case map[string]any:
		cues, ok := v["cues"]
		if !ok {
			return nil, &Error{Path: name, Index: -1, Message: `missing "cues" list`}
		}
		if cues == nil {
			return []dataset.Arg{}, nil
		}
		if list, ok = cues.([]any); !ok {
			return nil, &Error{Path: name, Index: -1, Message: `"cues" is not a list`}
		}
	default:
		return nil, &Error{Path: name, Index: -1, Message: "expected a list of cues"}
	}

	return DecodeRecords(list, name)
}

// DecodeRecords converts already decoded records (maps as produced by yaml
// or json decoding) into dataset arguments. name is used in error messages.
func DecodeRecords(list []any, name string) ([]dataset.Arg, error) {
	args := make([]dataset.Arg, 0, len(list))
	seen := make(map[string]int, len(list))
	for i, raw := range list {
		arg, err := decodeRecord(raw)
		if err != nil {
			err.Path, err.Index = name, i
			return nil, err
		}
		if first, dup := seen[arg.Key]; dup {
			return nil, &Error{Path: name, Index: i, Key: arg.Key,
				Message: fmt.Sprintf("duplicate key, first defined by cue %d", first)}
		}
		seen[arg.Key] = i
		args = append(args, arg)
	}
	return args, nil
}

// record is the validated form of one cue.
type record struct {
	Key    string  `validate:"required,max=1024"`
	Bounds *bounds `validate:"omitnil"`
}

type bounds struct {
	Low  float64
	High float64 `validate:"gtefield=Low"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeRecord(raw any) (dataset.Arg, *Error) {
	fields, ok := raw.(map[string]any)
	if !ok {
		return dataset.Arg{}, &Error{Message: "cue is not a mapping"}
	}
	for name := range fields {
		switch name {
		case "key", "interval", "data":
		default:
			return dataset.Arg{}, &Error{Message: fmt.Sprintf("unknown field %q", name)}
		}
	}

	var rec record
	switch k := fields["key"].(type) {
	case string:
		rec.Key = norm.NFC.String(k)
	case nil:
	default:
		return dataset.Arg{}, &Error{Message: fmt.Sprintf("key must be a string, got %T", k)}
	}

	var (
		iv  *interval.Interval
		msg string
	)
	if v, present := fields["interval"]; present && v != nil {
		var b bounds
		var lowInclude, highInclude bool
		b, lowInclude, highInclude, msg = parseInterval(v)
		if msg != "" {
			return dataset.Arg{}, &Error{Key: rec.Key, Message: msg}
		}
		rec.Bounds = &b
		if err := validate.Struct(rec); err != nil {
			return dataset.Arg{}, &Error{Key: rec.Key, Message: describe(err)}
		}
		parsed, err := interval.New(b.Low, b.High, lowInclude, highInclude)
		if err != nil {
			return dataset.Arg{}, &Error{Key: rec.Key, Message: err.Error()}
		}
		iv = &parsed
	} else if err := validate.Struct(rec); err != nil {
		return dataset.Arg{}, &Error{Key: rec.Key, Message: describe(err)}
	}
	return dataset.Put(rec.Key, iv, fields["data"]), nil
}

// parseInterval accepts a number, a string in interval.Parse syntax,
// [low, high] or [low, high, lowInclude, highInclude].
func parseInterval(v any) (bounds, bool, bool, string) {
	if x, ok := number(v); ok {
		return bounds{Low: x, High: x}, true, true, ""
	}
	switch t := v.(type) {
	case string:
		iv, err := interval.Parse(t)
		if err != nil {
			return bounds{}, false, false, err.Error()
		}
		return bounds{Low: iv.Low, High: iv.High}, iv.LowInclude, iv.HighInclude, ""
	case []any:
		if len(t) != 2 && len(t) != 4 {
			return bounds{}, false, false, fmt.Sprintf("interval list needs 2 or 4 elements, got %d", len(t))
		}
		low, ok := bound(t[0])
		if !ok {
			return bounds{}, false, false, fmt.Sprintf("bad low bound %v", t[0])
		}
		high, ok := bound(t[1])
		if !ok {
			return bounds{}, false, false, fmt.Sprintf("bad high bound %v", t[1])
		}
		lowInclude, highInclude := true, false
		if len(t) == 4 {
			li, ok1 := t[2].(bool)
			hi, ok2 := t[3].(bool)
			if !ok1 || !ok2 {
				return bounds{}, false, false, "interval flags must be booleans"
			}
			lowInclude, highInclude = li, hi
		}
		return bounds{Low: low, High: high}, lowInclude, highInclude, ""
	default:
		return bounds{}, false, false, fmt.Sprintf("unsupported interval %T", v)
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func bound(v any) (float64, bool) {
	if x, ok := number(v); ok {
		return x, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inf", "+inf":
		return math.Inf(1), true
	case "-inf":
		return math.Inf(-1), true
	}
	return 0, false
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs[i] = strings.ToLower(fe.Field()) + " is required"
		case "gtefield":
			msgs[i] = "high bound is below low bound"
		default:
			msgs[i] = fmt.Sprintf("%s fails %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
		}
	}
	return strings.Join(msgs, "; ")
}
