package bulk

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/artcityconsulting/propwatch/internal/model"
)

func TestParseLines(t *testing.T) {
	got := ParseLines("2053078\r\n\n  MLS2054000  \nhttps://www.zillow.com/homedetails/x\n\n")
	want := []string{"2053078", "MLS2054000", "https://www.zillow.com/homedetails/x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseLinesEmpty(t *testing.T) {
	if got := ParseLines("\n  \n"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestParseCSVKnownHeader(t *testing.T) {
	csv := "address,MLS_Number,agent\n123 Main,2053078,Jane\n456 Oak,2054000,Bob\n"
	got, err := ParseCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2053078", "2054000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseCSVHeaderVariants(t *testing.T) {
	for _, header := range []string{"mls", "MLS#", "url", "Link", "property_url", "PROPERTY_LINK"} {
		csv := header + "\n2053078\n"
		got, err := ParseCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("header %q: %v", header, err)
		}
		if len(got) != 1 || got[0] != "2053078" {
			t.Errorf("header %q: got %v", header, got)
		}
	}
}

func TestParseCSVNoHeader(t *testing.T) {
	// No recognized header: every row is data, first column wins.
	csv := "2053078,extra\n2054000,extra\n"
	got, err := ParseCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2053078", "2054000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseCSVRaggedRows(t *testing.T) {
	csv := "a,url\nx\ny,2053078\n"
	got, err := ParseCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	// The short row has no url column and is skipped.
	want := []string{"2053078"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWriteCSV(t *testing.T) {
	checked := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	listings := []model.Listing{
		{
			InputText:     "2053078",
			Source:        "UtahRealEstate.com",
			Status:        "For Sale",
			Price:         "$450,000",
			Address:       "1234 Canyon View Dr, Salt Lake City, UT 84101",
			MLS:           "2053078",
			LastCheckedAt: &checked,
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, listings); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "input_text,source,status") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "2053078") || !strings.Contains(lines[1], "For Sale") {
		t.Errorf("record = %q", lines[1])
	}
	if !strings.Contains(lines[1], "2026-08-30 12:00:00") {
		t.Errorf("timestamp missing: %q", lines[1])
	}
}
