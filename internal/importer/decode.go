package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/unicode/norm"

	"github.com/wipacrepo/pubs/internal/publication"
)

// DefaultEncoding is used when no text encoding is named.
const DefaultEncoding = "utf-8"

// listFields are split on commas when read from CSV.
var listFields = map[string]bool{
	publication.FieldDownloads: true,
	publication.FieldProjects:  true,
	publication.FieldSites:     true,
}

// optionalFields may be absent from a candidate record.
var optionalFields = map[string]bool{
	publication.FieldSites:    true,
	publication.FieldAbstract: true,
}

// rawRecord is one record as decoded from the payload, before typing.
type rawRecord map[string]any

// decodeText converts data from the named IANA charset to UTF-8 and drops
// a leading byte order mark.
func decodeText(data []byte, encoding string) (string, error) {
	if strings.TrimSpace(encoding) == "" {
		encoding = DefaultEncoding
	}
	enc, err := ianaindex.IANA.Encoding(encoding)
	if err != nil || enc == nil {
		return "", &ImportError{Reason: fmt.Sprintf("unsupported text encoding %q", encoding)}
	}
	if name, _ := ianaindex.IANA.Name(enc); name == "UTF-8" {
		if !utf8.Valid(data) {
			return "", &ImportError{Reason: "payload is not valid utf-8"}
		}
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &ImportError{Reason: fmt.Sprintf("decoding payload as %s", encoding), Err: err}
	}
	// Decoders substitute U+FFFD for bytes the charset cannot map.
	if bytes.ContainsRune(decoded, utf8.RuneError) && !bytes.ContainsRune(data, utf8.RuneError) {
		return "", &ImportError{Reason: fmt.Sprintf("payload has bytes that are not valid %s", encoding)}
	}
	return strings.TrimPrefix(string(decoded), "\ufeff"), nil
}

// parsePayload tries JSON first, then CSV.
func parsePayload(text string) ([]rawRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ImportError{Reason: "empty payload"}
	}

	if json.Valid([]byte(text)) {
		return parseJSON(text)
	}
	jsonErr := json.Unmarshal([]byte(text), new(any))

	records, csvErr := parseCSV(text)
	if csvErr != nil {
		return nil, &ImportError{
			Reason: fmt.Sprintf("payload is neither JSON (%v) nor CSV (%v)", jsonErr, csvErr),
		}
	}
	return records, nil
}

func parseJSON(text string) ([]rawRecord, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ImportError{Reason: "parsing JSON", Err: err}
	}

	var list []any
	switch v := doc.(type) {
	case map[string]any:
		pubs, ok := v["publications"]
		if !ok {
			return nil, &ImportError{Reason: `JSON object has no "publications" key`}
		}
		if list, ok = pubs.([]any); !ok {
			return nil, &ImportError{Reason: `JSON "publications" is not a list`}
		}
	case []any:
		list = v
	default:
		return nil, &ImportError{Reason: "JSON payload must be a list or an object with a publications list"}
	}

	records := make([]rawRecord, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &ImportError{Reason: fmt.Sprintf("JSON entry %d is not an object", i+1)}
		}
		records = append(records, rawRecord(obj))
	}
	return records, nil
}

func parseCSV(text string) ([]rawRecord, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no header row")
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	hasTitle := false
	for _, h := range header {
		if h == publication.FieldTitle {
			hasTitle = true
		}
	}
	if !hasTitle {
		return nil, errors.New("header has no title column")
	}

	var records []rawRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		rec := make(rawRecord, len(header))
		for i, name := range header {
			if i >= len(row) || name == "" {
				continue
			}
			if listFields[name] {
				rec[name] = splitList(row[i])
			} else {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// splitList splits a comma-joined CSV cell. An empty cell is an empty list.
func splitList(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return []string{}
	}
	parts := strings.Split(cell, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// clean trims s and puts it in Unicode normalization form C.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// asString accepts only string values; numbers are not coerced.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// toPublication types a raw record. Fields with the wrong shape are
// reported in shapeErrs, keyed by field name, and left empty on the
// returned publication.
func toPublication(raw rawRecord) (publication.Publication, map[string]*publication.ValidationError) {
	var p publication.Publication
	shapeErrs := make(map[string]*publication.ValidationError)

	for _, field := range publication.FieldOrder {
		v, present := raw[field]
		if !present || (v == nil && optionalFields[field]) {
			if !optionalFields[field] {
				shapeErrs[field] = publication.Invalid(field, "missing")
			}
			continue
		}

		switch field {
		case publication.FieldTitle, publication.FieldType, publication.FieldCitation,
			publication.FieldDate, publication.FieldAbstract:
			s, ok := asString(v)
			if !ok {
				shapeErrs[field] = publication.Invalid(field, "must be a string")
				continue
			}
			setString(&p, field, clean(s))

		case publication.FieldAuthors, publication.FieldDownloads,
			publication.FieldProjects, publication.FieldSites:
			list, ok := toStringList(field, v)
			if !ok {
				shapeErrs[field] = publication.Invalid(field, "must be a list of strings")
				continue
			}
			setList(&p, field, list)
		}
	}
	return p.WithDefaults(), shapeErrs
}

// toStringList accepts a list of strings. A scalar author string, common
// in CSV input, becomes a one-element list.
func toStringList(field string, v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		for i, s := range list {
			out[i] = clean(s)
		}
		return out, true
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := asString(item)
			if !ok {
				return nil, false
			}
			out[i] = clean(s)
		}
		return out, true
	case string:
		if field == publication.FieldAuthors {
			return []string{clean(list)}, true
		}
	}
	return nil, false
}

func setString(p *publication.Publication, field, s string) {
	switch field {
	case publication.FieldTitle:
		p.Title = s
	case publication.FieldType:
		p.Type = s
	case publication.FieldCitation:
		p.Citation = s
	case publication.FieldDate:
		p.Date = s
	case publication.FieldAbstract:
		p.Abstract = s
	}
}

func setList(p *publication.Publication, field string, list []string) {
	switch field {
	case publication.FieldAuthors:
		p.Authors = list
	case publication.FieldDownloads:
		p.Downloads = list
	case publication.FieldProjects:
		p.Projects = list
	case publication.FieldSites:
		p.Sites = list
	}
}
