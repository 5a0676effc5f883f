package filter_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice/bizerror"
	"backoffice/domain/filter"
	"backoffice/jsondoc"
	"backoffice/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestFiltersRestAPI(t *testing.T) {
	RegisterTestingT(t)

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	filter.RegisterFiltersRestAPI(router)

	t.Run("should create filter", func(t *testing.T) {
		var received *filter.FilterCreation
		filter.CreateFilterFunc = func(ctx context.Context, c *filter.FilterCreation) (*filter.Filter, error) {
			received = c
			return &filter.Filter{ID: 100, Name: c.Name, Entity: c.Entity, Query: c.Query, CreatedBy: "SYSTEM"}, nil
		}
		req := httptest.NewRequest(http.MethodPost, filter.PathFilters,
			bytes.NewReader([]byte(`{"name":"All","entity":"individuals","query":{"select":{"id":true}}}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body).To(MatchJSON(`{"id":"100","name":"All","entity":"individuals","query":{"select":{"id":true}},
			"createdBy":"SYSTEM","createdAt":"0001-01-01T00:00:00Z","updatedAt":"0001-01-01T00:00:00Z"}`))
		Expect(received.Query).To(Equal(jsondoc.Document{"select": map[string]interface{}{"id": true}}))
	})

	t.Run("should reject unknown entity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, filter.PathFilters,
			bytes.NewReader([]byte(`{"name":"All","entity":"robots","query":{"select":{"id":true}}}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param",
			"message":"Key: 'FilterCreation.Entity' Error:Field validation for 'Entity' failed on the 'oneof' tag","data":null}`))
	})

	t.Run("duplicated name should be a bad request", func(t *testing.T) {
		filter.CreateFilterFunc = func(ctx context.Context, c *filter.FilterCreation) (*filter.Filter, error) {
			return nil, bizerror.ErrNameInUse
		}
		req := httptest.NewRequest(http.MethodPost, filter.PathFilters,
			bytes.NewReader([]byte(`{"name":"All","entity":"businesses","query":{"select":{"id":true}}}`)))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.conflict","message":"Name already in use","data":null}`))
	})

	t.Run("should query filters by entity", func(t *testing.T) {
		var received *filter.FilterQuery
		filter.QueryFiltersFunc = func(ctx context.Context, q *filter.FilterQuery) ([]filter.Filter, error) {
			received = q
			return []filter.Filter{}, nil
		}
		req := httptest.NewRequest(http.MethodGet, filter.PathFilters+"?entity=businesses", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`[]`))
		Expect(received.Entity).To(Equal(filter.EntityBusinesses))
	})

	t.Run("should return 404 for missing filter", func(t *testing.T) {
		filter.DetailFilterFunc = func(ctx context.Context, id types.ID) (*filter.Filter, error) {
			return nil, bizerror.ErrNotFound
		}
		req := httptest.NewRequest(http.MethodGet, filter.PathFilters+"/42", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body).To(MatchJSON(`{"code":"common.record_not_found","message":"record not found","data":null}`))
	})
}
