package author

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Name
	}{
		{
			name:  "single word is last name",
			input: "Halzen",
			want:  Name{Last: "Halzen"},
		},
		{
			name:  "two words is First Last",
			input: "Francis Halzen",
			want:  Name{First: "Francis", Last: "Halzen"},
		},
		{
			name:  "three words: first two are first name",
			input: "Mark G Aartsen",
			want:  Name{First: "Mark G", Last: "Aartsen"},
		},
		{
			name:  "comma format: Last, First",
			input: "Aartsen, M. G.",
			want:  Name{First: "M. G.", Last: "Aartsen"},
		},
		{
			name:  "leading/trailing whitespace",
			input: "  IceCube  ",
			want:  Name{Last: "IceCube"},
		},
		{
			name:  "empty string",
			input: "",
			want:  Name{},
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  Name{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseName(tt.input)
			if got != tt.want {
				t.Errorf("ParseName(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestQueryMatches(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		author string
		want   bool
	}{
		{"empty query matches everything", "", "Halzen, F.", true},
		{"single word prefix of last name", "halz", "Halzen, F.", true},
		{"single word prefix of any word", "coll", "IceCube Collaboration", true},
		{"single word no infix match", "alzen", "Halzen, F.", false},
		{"first and last", "F Halzen", "Halzen, F.", true},
		{"first name prefix", "Fr Halzen", "Francis Halzen", true},
		{"last name must be exact", "F Halzen", "Halzenberg, F.", false},
		{"first name mismatch", "J Halzen", "Halzen, F.", false},
		{"comma query", "Aartsen, M", "Aartsen, M. G.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseQuery(tt.query).Matches(tt.author); got != tt.want {
				t.Errorf("ParseQuery(%q).Matches(%q) = %v, want %v", tt.query, tt.author, got, tt.want)
			}
		})
	}
}

type fakeSource struct {
	authors []string
	err     error
}

func (f fakeSource) DistinctAuthors(context.Context) ([]string, error) {
	return f.authors, f.err
}

func TestIndex_Distinct(t *testing.T) {
	ix := NewIndex(fakeSource{authors: []string{"auth2", "auth1", "auth2"}})
	got, err := ix.Distinct(context.Background())
	if err != nil {
		t.Fatalf("Distinct() error = %v", err)
	}
	if want := []string{"auth1", "auth2"}; !slices.Equal(got, want) {
		t.Errorf("Distinct() = %v, want %v", got, want)
	}

	boom := errors.New("boom")
	if _, err := NewIndex(fakeSource{err: boom}).Distinct(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Distinct() error = %v, want wrapped source error", err)
	}
}

func TestIndex_Suggest(t *testing.T) {
	ix := NewIndex(fakeSource{authors: []string{
		"Halzen, F.", "Aartsen, M. G.", "Hallen, P.", "IceCube Collaboration", "Karle, A.",
	}})

	got, err := ix.Suggest(context.Background(), "hal", 0)
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if want := []string{"Hallen, P.", "Halzen, F."}; !slices.Equal(got, want) {
		t.Errorf("Suggest(hal) = %v, want %v", got, want)
	}

	got, _ = ix.Suggest(context.Background(), "", 2)
	if want := []string{"Aartsen, M. G.", "Hallen, P."}; !slices.Equal(got, want) {
		t.Errorf("Suggest(empty, 2) = %v, want %v", got, want)
	}

	got, _ = ix.Suggest(context.Background(), "zzz", 5)
	if got == nil || len(got) != 0 {
		t.Errorf("Suggest(zzz) = %#v, want empty non-nil", got)
	}
}
