package resolver

import (
	"errors"
	"testing"
)

func TestResolveMLSNumber(t *testing.T) {
	cases := []struct {
		in      string
		wantURL string
	}{
		{"2053078", "https://www.utahrealestate.com/report/2053078"},
		{"MLS2053078", "https://www.utahrealestate.com/report/2053078"},
		{"mls2053078", "https://www.utahrealestate.com/report/2053078"},
		{"  2053078  ", "https://www.utahrealestate.com/report/2053078"},
		{"1234567890", "https://www.utahrealestate.com/report/1234567890"},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.in)
		if err != nil {
			t.Errorf("Resolve(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got.URL != tc.wantURL {
			t.Errorf("Resolve(%q) url = %q, want %q", tc.in, got.URL, tc.wantURL)
		}
		if got.Source != SourceUtahRealEstate {
			t.Errorf("Resolve(%q) source = %q, want %q", tc.in, got.Source, SourceUtahRealEstate)
		}
	}
}

func TestResolveURL(t *testing.T) {
	got, err := Resolve("https://www.utahrealestate.com/report/2053078")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != SourceUtahRealEstate {
		t.Errorf("source = %q, want %q", got.Source, SourceUtahRealEstate)
	}
	if got.URL != "https://www.utahrealestate.com/report/2053078" {
		t.Errorf("url rewritten: %q", got.URL)
	}

	got, err = Resolve("https://www.zillow.com/homedetails/123-Main-St/12345_zpid/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != SourceZillow {
		t.Errorf("source = %q, want %q", got.Source, SourceZillow)
	}
}

func TestResolveUnsupportedURL(t *testing.T) {
	_, err := Resolve("https://www.realtor.com/property/1")
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("err = %v, want ErrUnsupportedSource", err)
	}
}

func TestResolveAddress(t *testing.T) {
	_, err := Resolve("123 Main St, Springfield")
	if !errors.Is(err, ErrAddressInput) {
		t.Errorf("err = %v, want ErrAddressInput", err)
	}
}

func TestResolveInvalid(t *testing.T) {
	for _, in := range []string{"not-a-listing", "12345", "12345678901", "MLS", ""} {
		_, err := Resolve(in)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestDetectSource(t *testing.T) {
	if got := DetectSource("https://www.utahrealestate.com/report/1"); got != SourceUtahRealEstate {
		t.Errorf("got %q", got)
	}
	if got := DetectSource("https://www.zillow.com/homedetails/x"); got != SourceZillow {
		t.Errorf("got %q", got)
	}
	if got := DetectSource("https://example.com"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
