package bizerror_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice/bizerror"
	"backoffice/testinfra"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

func TestErrorHandling(t *testing.T) {
	RegisterTestingT(t)

	cases := []struct {
		name   string
		err    interface{}
		status int
		body   string
	}{
		{"biz error should be responded as is", &bizerror.ErrBadParam{Cause: errors.New("bad id")},
			http.StatusBadRequest, `{"code":"common.bad_param","message":"bad id","data":null}`},
		{"wrapped biz error should be unwrapped", fmt.Errorf("wrap: %w", &bizerror.ErrUnsupportedFlowType{Name: "kycSignup"}),
			http.StatusNotFound, `{"code":"workflow.unsupported_flow_type","message":"kycSignup is not supported","data":null}`},
		{"conflict should be a bad request", bizerror.ErrNameInUse,
			http.StatusBadRequest, `{"code":"common.conflict","message":"Name already in use","data":null}`},
		{"invalid filter query should carry its cause", &bizerror.ErrInvalidFilterQuery{Cause: errors.New("unknown field")},
			http.StatusBadRequest, `{"code":"filter.invalid_query","message":"invalid filter query: unknown field","data":null}`},
		{"gorm not found should be 404", gorm.ErrRecordNotFound,
			http.StatusNotFound, `{"code":"common.record_not_found","message":"record not found","data":null}`},
		{"not found should be 404", bizerror.ErrNotFound,
			http.StatusNotFound, `{"code":"common.record_not_found","message":"record not found","data":null}`},
		{"invalid event should be a bad request", fmt.Errorf("%w: 'approve' is not allowed from state 'done'", bizerror.ErrInvalidEvent),
			http.StatusBadRequest, `{"code":"workflow.invalid_event","message":"invalid event: 'approve' is not allowed from state 'done'","data":null}`},
		{"status transition should be a bad request", bizerror.ErrStatusTransition,
			http.StatusBadRequest, `{"code":"workflow.invalid_status_transition","message":"invalid status transition","data":null}`},
		{"lock busy should be a conflict", bizerror.ErrLocked,
			http.StatusBadRequest, `{"code":"common.conflict","message":"resource is locked","data":null}`},
		{"unauthenticated should be 401", bizerror.ErrUnauthenticated,
			http.StatusUnauthorized, `{"code":"common.unauthenticated","message":"unauthenticated","data":null}`},
		{"unknown error should be 500", errors.New("boom"),
			http.StatusInternalServerError, `{"code":"common.internal_server_error","message":"boom","data":null}`},
		{"non error panic should be 500", "boom",
			http.StatusInternalServerError, `{"code":"common.internal_server_error","message":"boom","data":null}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(bizerror.ErrorHandling())
			router.GET("/panic", func(c *gin.Context) {
				panic(tc.err)
			})
			status, body, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/panic", nil), router)
			Expect(status).To(Equal(tc.status))
			Expect(body).To(MatchJSON(tc.body))
		})
	}

	t.Run("errors added to context should be handled", func(t *testing.T) {
		router := gin.New()
		router.Use(bizerror.ErrorHandling())
		router.GET("/error", func(c *gin.Context) {
			_ = c.Error(bizerror.ErrMissingEntityID)
		})
		status, body, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/error", nil), router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"workflow.entity_id_required","message":"entity id is required","data":null}`))
	})
}
