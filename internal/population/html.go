package population

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/logger"
)

const (
	DefaultTableURL         = "https://worldpopulationreview.com/us-counties/virginia"
	DefaultNameColumn       = "County"
	DefaultPopulationPrefix = "2025 Pop"
	DefaultHTTPTimeout      = 30 * time.Second
	userAgent               = "Mozilla/5.0 (compatible; offender-census/1.0)"
)

// HTMLTable scrapes the first table of a web page.
type HTMLTable struct {
	URL string
	// NameColumn is the exact header of the county column.
	NameColumn string
	// PopulationPrefix matches the population header by prefix, since the
	// page decorates it ("2025 Pop. ↓").
	PopulationPrefix string

	Client *resty.Client
}

// NewHTMLTable returns an HTMLTable for url with the default column names.
func NewHTMLTable(url string) *HTMLTable {
	if url == "" {
		url = DefaultTableURL
	}
	return &HTMLTable{
		URL:              url,
		NameColumn:       DefaultNameColumn,
		PopulationPrefix: DefaultPopulationPrefix,
		Client: resty.New().
			SetTimeout(DefaultHTTPTimeout).
			SetHeader("User-Agent", userAgent),
	}
}

// Load fetches the page and parses its first table.
func (h *HTMLTable) Load(ctx context.Context) ([]census.Subject, error) {
	client := h.Client
	if client == nil {
		client = resty.New().SetTimeout(DefaultHTTPTimeout)
	}

	res, err := client.R().
		SetContext(ctx).
		Get(h.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching population page: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	subjects, err := parseTable(doc.Find("table").First(), h.NameColumn, h.PopulationPrefix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.URL, err)
	}

	logger.Info("Population table fetched", logger.Fields{
		"url":      h.URL,
		"counties": len(subjects),
	})
	return subjects, nil
}

func parseTable(table *goquery.Selection, nameColumn, popPrefix string) ([]census.Subject, error) {
	if table.Length() == 0 {
		return nil, fmt.Errorf("no table found")
	}

	rows := table.Find("tr")
	nameCol, popCol := -1, -1
	headerRow := -1
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("th")
		if cells.Length() == 0 {
			return true
		}
		cells.Each(func(j int, th *goquery.Selection) {
			text := cellText(th)
			switch {
			case text == nameColumn:
				nameCol = j
			case strings.HasPrefix(text, popPrefix):
				popCol = j
			}
		})
		headerRow = i
		return false
	})
	if nameCol < 0 {
		return nil, fmt.Errorf("%q: %w", nameColumn, ErrNoColumn)
	}
	if popCol < 0 {
		return nil, fmt.Errorf("%q: %w", popPrefix+"*", ErrNoColumn)
	}

	var (
		subjects []census.Subject
		rowErr   error
	)
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		if i <= headerRow {
			return true
		}
		cells := tr.Find("td, th")
		if cells.Length() <= nameCol || cells.Length() <= popCol {
			return true
		}
		name := cellText(cells.Eq(nameCol))
		if name == "" {
			return true
		}
		pop, err := ParsePopulation(cellText(cells.Eq(popCol)))
		if err != nil {
			rowErr = fmt.Errorf("row %d (%s): %w", i, name, err)
			return false
		}
		subjects = append(subjects, census.Subject{Name: name, Population: pop})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	if err := census.ValidateSubjects(subjects); err != nil {
		return nil, fmt.Errorf("invalid population table: %w", err)
	}
	return subjects, nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
