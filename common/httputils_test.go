package common_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"backoffice/common"

	. "github.com/onsi/gomega"
)

func TestHttpInvokeJson(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should send json body with headers and return response body", func(t *testing.T) {
		var gotHeader, gotContentType, gotBody string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get("X-Authorization")
			gotContentType = r.Header.Get("Content-Type")
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`ok`))
		}))
		defer srv.Close()

		body, err := common.HttpInvokeJson(context.Background(), nil, http.MethodPost, srv.URL,
			http.Header{"X-Authorization": []string{"secret"}}, []byte(`{"a":1}`))
		Expect(err).To(BeNil())
		Expect(body).To(Equal("ok"))
		Expect(gotHeader).To(Equal("secret"))
		Expect(gotContentType).To(Equal("application/json;charset=UTF-8"))
		Expect(gotBody).To(Equal(`{"a":1}`))
	})

	t.Run("should return ErrHttpInvoke when status is not 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`upstream down`))
		}))
		defer srv.Close()

		_, err := common.HttpInvokeJson(context.Background(), srv.Client(), http.MethodPost, srv.URL, nil, []byte(`{}`))
		Expect(err).ToNot(BeNil())
		var invokeErr *common.ErrHttpInvoke
		Expect(errors.As(err, &invokeErr)).To(BeTrue())
		Expect(invokeErr.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(invokeErr.RespBody).To(Equal("upstream down"))
		Expect(invokeErr.Method).To(Equal(http.MethodPost))
	})

	t.Run("should wrap transport errors", func(t *testing.T) {
		_, err := common.HttpInvokeJson(context.Background(), nil, http.MethodPost, "http://127.0.0.1:1/none", nil, nil)
		Expect(err).ToNot(BeNil())
		var invokeErr *common.ErrHttpInvoke
		Expect(errors.As(err, &invokeErr)).To(BeTrue())
		Expect(invokeErr.Cause).ToNot(BeNil())
		Expect(invokeErr.StatusCode).To(BeZero())
	})
}
