// Package books proxies the external book catalog.
package books

import (
	"context"

	"github.com/bookcircle/bookcircle/internal/adapters/googlebooks"
	"github.com/bookcircle/bookcircle/internal/app/domain/book"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

// Catalog is the slice of the catalog adapter this service needs.
type Catalog interface {
	Search(ctx context.Context, title string) ([]googlebooks.Volume, error)
	LookupISBN(ctx context.Context, isbn string) (googlebooks.Volume, error)
}

// Service answers catalog queries.
type Service struct {
	catalog Catalog
	log     *logger.Logger
}

// New constructs a books service.
func New(catalog Catalog, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("books")
	}
	return &Service{catalog: catalog, log: log}
}

// Search returns catalog volumes matching a title.
func (s *Service) Search(ctx context.Context, title string) ([]googlebooks.Volume, error) {
	volumes, err := s.catalog.Search(ctx, title)
	if err != nil {
		s.log.WithError(err).Warn("catalog search failed")
		return nil, err
	}
	if volumes == nil {
		volumes = []googlebooks.Volume{}
	}
	return volumes, nil
}

// LookupISBN returns catalog metadata for a normalized isbn. A miss is a zero
// volume, not an error.
func (s *Service) LookupISBN(ctx context.Context, isbn string) (googlebooks.Volume, error) {
	return s.catalog.LookupISBN(ctx, book.NormalizeISBN(isbn))
}
