package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wipacrepo/pubs/internal/importer"
	"github.com/wipacrepo/pubs/internal/publication"
	"github.com/wipacrepo/pubs/internal/store"
)

// Title truncation lengths by context.
const (
	ListTitleMaxLen   = 70
	ImportTitleMaxLen = 60
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitForError exits with the code matching err's kind.
func exitForError(err error, format string, args ...interface{}) {
	exitWithError(exitCodeFor(err), "%s: %v", fmt.Sprintf(format, args...), err)
}

// exitCodeFor maps core errors to exit codes.
func exitCodeFor(err error) int {
	var (
		verr *publication.ValidationError
		ierr *importer.ImportError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, store.ErrUnavailable):
		return ExitUnavailable
	case errors.As(err, &verr), errors.As(err, &ierr):
		return ExitDataError
	default:
		return ExitError
	}
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// printPublicationHuman prints one record as a short block.
func printPublicationHuman(p publication.Publication) {
	if p.ID != "" {
		fmt.Printf("%s  %s\n", p.ID, publication.DisplayDate(p.Date))
	} else {
		fmt.Printf("%s\n", publication.DisplayDate(p.Date))
	}
	fmt.Printf("  %s\n", truncateString(p.Title, ListTitleMaxLen))
	fmt.Printf("  %s\n", formatAuthorsShort(p.Authors, 3))
	fmt.Printf("  %s [%s]\n", p.Citation, p.Type)
	if len(p.Projects) > 0 || len(p.Sites) > 0 {
		fmt.Printf("  projects: %s  sites: %s\n", strings.Join(p.Projects, ", "), strings.Join(p.Sites, ", "))
	}
	for _, link := range p.Downloads {
		if domain := publication.LinkDomain(link); domain != "" {
			fmt.Printf("  [%s] %s\n", domain, link)
		} else {
			fmt.Printf("  %s\n", link)
		}
	}
	fmt.Println()
}

// formatAuthorsShort lists up to limit authors, then "et al.".
func formatAuthorsShort(authors []string, limit int) string {
	if len(authors) == 0 {
		return "(no authors)"
	}
	if len(authors) <= limit {
		return strings.Join(authors, "; ")
	}
	return strings.Join(authors[:limit], "; ") + " et al."
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
