package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"backoffice/bizerror"
	"backoffice/client/es"
	"backoffice/domain"
	"backoffice/indices"

	"github.com/gin-gonic/gin"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

var (
	PathRuntimeSearch = "/api/v1/internal/workflows/search"

	SearchRuntimesFunc = SearchRuntimes
)

type RuntimeSearch struct {
	Q          string                 `form:"q"`
	Statuses   []domain.RuntimeStatus `form:"status"`
	EntityType domain.EntityType      `form:"entityType"`
	Limit      int                    `form:"limit"`
}

// SearchRuntimes runs a full text search over the indexed runtimes, most recently updated first.
func SearchRuntimes(ctx context.Context, q RuntimeSearch) ([]indices.RuntimeDocument, error) {
	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}
	if q.Limit > maxSearchLimit {
		q.Limit = maxSearchLimit
	}

	filters := make([]es.H, 0, 3)
	if q.Q != "" {
		filters = append(filters, es.H{"multi_match": es.H{
			"query":    q.Q,
			"fields":   []string{"entityName", "email", "correlationId"},
			"operator": "AND",
		}})
	}
	if len(q.Statuses) > 0 {
		filters = append(filters, es.H{"terms": es.H{"status": q.Statuses}})
	}
	if q.EntityType != "" {
		filters = append(filters, es.H{"term": es.H{"entityType": q.EntityType}})
	}

	query := es.H{
		"size":  q.Limit,
		"query": es.H{"bool": es.H{"filter": filters}},
		"sort":  []es.H{{"updatedAt": es.H{"order": "desc"}}},
	}
	r, err := es.SearchFunc(ctx, indices.RuntimeIndexName, query)
	if err != nil {
		return nil, err
	}

	docs := make([]indices.RuntimeDocument, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := indices.RuntimeDocument{}
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", hit.Id, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func RegisterSearchRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathRuntimeSearch, middleWares...)
	g.GET("", handleSearch)
}

func handleSearch(c *gin.Context) {
	q := RuntimeSearch{}
	if err := c.ShouldBindQuery(&q); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	docs, err := SearchRuntimesFunc(c.Request.Context(), q)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, docs)
}
