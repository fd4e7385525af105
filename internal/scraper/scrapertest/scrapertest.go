// Package scrapertest provides a scripted in-memory Session for tests.
package scrapertest

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSuchElement is returned when a page has no summary text scripted.
var ErrNoSuchElement = errors.New("no such element")

// Page scripts what one navigation shows. Successive ElementText calls walk
// through Texts and then repeat the last one.
type Page struct {
	Texts   []string
	NavErr  error
	ReadErr error
}

// Rendered is a page whose summary shows text immediately.
func Rendered(text string) Page {
	return Page{Texts: []string{text}}
}

// Blank is a page whose summary never renders.
func Blank() Page {
	return Page{}
}

// Session is a fake scraper.Session. Script returns the page shown on the
// visit-th (1-indexed) navigation to url.
type Session struct {
	Script func(url string, visit int) Page

	mu          sync.Mutex
	visits      map[string]int
	current     Page
	reads       int
	navigations []string
	closed      bool
}

// New returns a Session driven by script.
func New(script func(url string, visit int) Page) *Session {
	return &Session{Script: script, visits: make(map[string]int)}
}

// Sequence shows pages[i] on the (i+1)-th visit of any URL, repeating the last page.
func Sequence(pages ...Page) *Session {
	return New(func(_ string, visit int) Page {
		if len(pages) == 0 {
			return Blank()
		}
		if visit > len(pages) {
			return pages[len(pages)-1]
		}
		return pages[visit-1]
	})
}

// Navigate records the visit and loads the scripted page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visits == nil {
		s.visits = make(map[string]int)
	}
	s.visits[url]++
	s.navigations = append(s.navigations, url)
	s.current = s.Script(url, s.visits[url])
	s.reads = 0
	return s.current.NavErr
}

// ElementText returns the next scripted summary text.
func (s *Session) ElementText(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.ReadErr != nil {
		return "", s.current.ReadErr
	}
	if len(s.current.Texts) == 0 {
		return "", ErrNoSuchElement
	}
	i := s.reads
	if i >= len(s.current.Texts) {
		i = len(s.current.Texts) - 1
	}
	s.reads++
	return s.current.Texts[i], nil
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Visits returns how many times url was navigated to.
func (s *Session) Visits(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[url]
}

// Navigations returns every navigated URL in order.
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
