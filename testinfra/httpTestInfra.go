package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// ExecuteRequest serves req with engine and returns the status code, the body and the recorded response.
func ExecuteRequest(req *http.Request, engine *gin.Engine) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp
}
