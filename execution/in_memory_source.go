package execution

import "context"

// InMemorySource serves a fixed slice of pages.
type InMemorySource struct {
	pages []Page
	index int
}

func NewInMemorySource(pages []Page) *InMemorySource {
	return &InMemorySource{
		pages: pages,
		index: 0,
	}
}

func (s *InMemorySource) Next(ctx context.Context) (Page, error) {
	if s.index >= len(s.pages) {
		return Page{}, ErrEndOfStream
	}

	pageToReturn := s.pages[s.index]
	s.index++

	return pageToReturn, nil
}
