package query

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestBuildTargets_Order(t *testing.T) {
	targets, err := BuildTargets("Accomack County")
	if err != nil {
		t.Fatalf("BuildTargets() error: %v", err)
	}

	if len(targets) != NumFilters {
		t.Fatalf("BuildTargets() returned %d targets, want %d", len(targets), NumFilters)
	}

	wantWire := []string{"None", "Homeless", "NotIncarcerated", "CivillyCommitted", "Incarcerated"}
	for i, tgt := range targets {
		if tgt.Filter != Filters[i] {
			t.Errorf("targets[%d].Filter = %v, want %v", i, tgt.Filter, Filters[i])
		}
		if tgt.Subject != "Accomack County" {
			t.Errorf("targets[%d].Subject = %q, want %q", i, tgt.Subject, "Accomack County")
		}

		u, err := url.Parse(tgt.URL)
		if err != nil {
			t.Fatalf("url.Parse(%q) error: %v", tgt.URL, err)
		}
		if got := u.Query().Get("Filter"); got != wantWire[i] {
			t.Errorf("targets[%d] Filter param = %q, want %q", i, got, wantWire[i])
		}
	}
}

func TestBuildTargets_ExactURL(t *testing.T) {
	targets, err := BuildTargets("Accomack County")
	if err != nil {
		t.Fatalf("BuildTargets() error: %v", err)
	}

	want := "https://www.vspsor.com/Search/Results?Filter=Homeless&firstName=&lastName=&registrationNumber=&Address=&County=Accomack+County&Zip="
	if targets[1].URL != want {
		t.Errorf("URL = %q, want %q", targets[1].URL, want)
	}
}

func TestBuildTargets_EncodesCounty(t *testing.T) {
	tests := []string{
		"King & Queen",
		"Isle of Wight",
		"Fairfax City",
		"Charles City/County",
		"St. Mary's = ?#",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			targets, err := BuildTargets(name)
			if err != nil {
				t.Fatalf("BuildTargets() error: %v", err)
			}

			for _, tgt := range targets {
				raw := countyParam(t, tgt.URL)
				if strings.ContainsAny(raw, "& ") {
					t.Errorf("encoded County %q contains a literal '&' or space", raw)
				}

				decoded, err := url.QueryUnescape(raw)
				if err != nil {
					t.Fatalf("QueryUnescape(%q) error: %v", raw, err)
				}
				if decoded != name {
					t.Errorf("decoded County = %q, want %q", decoded, name)
				}

				u, err := url.Parse(tgt.URL)
				if err != nil {
					t.Fatalf("url.Parse() error: %v", err)
				}
				if got := u.Query().Get("County"); got != name {
					t.Errorf("parsed County = %q, want %q", got, name)
				}
			}
		})
	}
}

// countyParam returns the still-encoded County value from a raw URL.
func countyParam(t *testing.T, rawURL string) string {
	t.Helper()
	_, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		t.Fatalf("URL %q has no query", rawURL)
	}
	for _, pair := range strings.Split(query, "&") {
		if v, ok := strings.CutPrefix(pair, "County="); ok {
			return v
		}
	}
	t.Fatalf("URL %q has no County parameter", rawURL)
	return ""
}

func TestBuildTargets_Invalid(t *testing.T) {
	for _, name := range []string{"", "   ", "bad\xff"} {
		_, err := BuildTargets(name)
		if !errors.Is(err, ErrInvalidSubject) {
			t.Errorf("BuildTargets(%q) error = %v, want ErrInvalidSubject", name, err)
		}
	}
}

func TestNewBuilder_BaseURL(t *testing.T) {
	b := NewBuilder("http://127.0.0.1:9999/results")
	targets, err := b.BuildTargets("Alpha")
	if err != nil {
		t.Fatalf("BuildTargets() error: %v", err)
	}
	if !strings.HasPrefix(targets[0].URL, "http://127.0.0.1:9999/results?Filter=None&") {
		t.Errorf("URL = %q, want custom base", targets[0].URL)
	}

	if NewBuilder("").BaseURL != DefaultBaseURL {
		t.Errorf("NewBuilder(\"\").BaseURL = %q, want %q", NewBuilder("").BaseURL, DefaultBaseURL)
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    Filter
		wantErr bool
	}{
		{"All", FilterAll, false},
		{"none", FilterAll, false},
		{"homeless", FilterHomeless, false},
		{"NotIncarcerated", FilterNotIncarcerated, false},
		{"civillycommitted", FilterCivillyCommitted, false},
		{"Incarcerated", FilterIncarcerated, false},
		{"Paroled", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilter(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFilter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseFilter(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFilter_JSON(t *testing.T) {
	data, err := json.Marshal(Target{Subject: "Alpha", Filter: FilterCivillyCommitted})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"filter":"CivillyCommitted"`) {
		t.Errorf("Marshal() = %s, want filter by name", data)
	}

	var decoded Target
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Filter != FilterCivillyCommitted {
		t.Errorf("decoded Filter = %v, want %v", decoded.Filter, FilterCivillyCommitted)
	}
}
