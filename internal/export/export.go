// Package export writes publications in formats the importer reads back.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/wipacrepo/pubs/internal/publication"
)

// CSVHeader is the column order of CSV exports.
var CSVHeader = []string{
	publication.FieldTitle,
	publication.FieldAuthors,
	publication.FieldType,
	publication.FieldCitation,
	publication.FieldDate,
	publication.FieldAbstract,
	publication.FieldDownloads,
	publication.FieldProjects,
	publication.FieldSites,
}

// WriteCSV writes pubs as CSV with list fields joined on commas.
//
// Authors are joined with ", " for readability. The importer treats the
// authors cell as a single name, so multi-author records only round-trip
// through JSON.
func WriteCSV(w io.Writer, pubs []publication.Publication) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, p := range pubs {
		row := []string{
			p.Title,
			strings.Join(p.Authors, ", "),
			p.Type,
			p.Citation,
			p.Date,
			p.Abstract,
			strings.Join(p.Downloads, ","),
			strings.Join(p.Projects, ","),
			strings.Join(p.Sites, ","),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row for %q: %w", p.Title, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// document is the JSON export shape, identical to the import shape.
type document struct {
	Publications []publication.Publication `json:"publications"`
}

// WriteJSON writes pubs as {"publications": [...]}, identifiers omitted.
func WriteJSON(w io.Writer, pubs []publication.Publication) error {
	doc := document{Publications: make([]publication.Publication, len(pubs))}
	for i, p := range pubs {
		p = p.WithDefaults()
		p.ID = ""
		doc.Publications[i] = p
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}

// Write dispatches on format ("csv" or "json").
func Write(w io.Writer, format string, pubs []publication.Publication) error {
	switch format {
	case "csv":
		return WriteCSV(w, pubs)
	case "json":
		return WriteJSON(w, pubs)
	default:
		return fmt.Errorf("unknown export format %q (want csv or json)", format)
	}
}
