package search

import (
	"log"
)

// Service fronts the two search backends: Meilisearch when healthy,
// Postgres full-text otherwise. Indexing calls are no-ops when Meili
// is not configured; the pgfts path reads live tables so it never
// goes stale.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService builds the search facade. meili may be nil, in which case
// every query is served by Postgres.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search runs the query against Meilisearch, falling back to Postgres
// when Meili is down or errors mid-flight.
func (s *Service) Search(q Query) (Response, error) {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: results, Total: total, Query: q.Text}, nil
		}
		log.Printf("search: meilisearch failed, falling back to postgres: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		return Response{}, err
	}
	return Response{Results: results, Total: total, Query: q.Text}, nil
}

// IndexArticle pushes an article into Meilisearch in the background.
func (s *Service) IndexArticle(rec ArticleRecord) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexArticle(rec); err != nil {
			log.Printf("search: index article %s: %v", rec.ID, err)
		}
	}()
}

// IndexMessage pushes a chat message into Meilisearch in the background.
func (s *Service) IndexMessage(rec MessageRecord) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.IndexMessage(rec); err != nil {
			log.Printf("search: index message %s: %v", rec.ID, err)
		}
	}()
}

// RemoveArticle drops an article from the Meilisearch index.
func (s *Service) RemoveArticle(id string) {
	if s.meili == nil {
		return
	}
	go func() {
		if err := s.meili.DeleteArticle(id); err != nil {
			log.Printf("search: delete article %s: %v", id, err)
		}
	}()
}
