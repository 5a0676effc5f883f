package servehttp_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backoffice/bizerror"
	"backoffice/servehttp"
	"backoffice/testinfra"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func TestNewEngine(t *testing.T) {
	RegisterTestingT(t)

	engine := servehttp.NewEngine("backoffice")
	engine.GET("/boom", func(c *gin.Context) {
		panic(bizerror.ErrNotFound)
	})

	t.Run("health endpoint should answer service name", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/", nil), engine)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal("backoffice"))
	})

	t.Run("metrics should be exposed", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/metrics", nil), engine)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("go_goroutines"))
	})

	t.Run("panics should be rendered as error body", func(t *testing.T) {
		status, body, _ := testinfra.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/boom", nil), engine)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body).To(MatchJSON(`{"code":"common.record_not_found","message":"record not found","data":null}`))
	})
}

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).To(BeNil())
	defer l.Close()
	return l.Addr().String()
}

func TestServe(t *testing.T) {
	RegisterTestingT(t)

	t.Run("cancel should shutdown server and run hooks in order", func(t *testing.T) {
		addr := freeAddr()
		ctx, cancel := context.WithCancel(context.Background())
		var calls []string
		done := make(chan error, 1)
		go func() {
			done <- servehttp.Serve(ctx, &http.Server{Addr: addr, Handler: servehttp.NewEngine("backoffice")},
				func(ctx context.Context) error { calls = append(calls, "first"); return errors.New("drain failed") },
				func(ctx context.Context) error { calls = append(calls, "second"); return nil },
			)
		}()

		Eventually(func() error {
			resp, err := http.Get("http://" + addr + "/")
			if err == nil {
				resp.Body.Close()
			}
			return err
		}, 2*time.Second, 20*time.Millisecond).Should(BeNil())

		cancel()
		Eventually(done, 5*time.Second).Should(Receive(MatchError("drain failed")))
		Expect(calls).To(Equal([]string{"first", "second"}))
	})

	t.Run("listen failure should be returned", func(t *testing.T) {
		err := servehttp.Serve(context.Background(), &http.Server{Addr: "256.0.0.1:bad"})
		Expect(err).ToNot(BeNil())
	})
}
