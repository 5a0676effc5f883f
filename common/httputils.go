package common

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HttpInvokeJson sends reqBody as a JSON request and returns the response body, non-2xx statuses are errors.
func HttpInvokeJson(ctx context.Context, client *http.Client, method, url string, headers http.Header, reqBody []byte) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", NewErrHttpInvoke(req, reqBody, nil, "", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	for name, values := range headers {
		req.Header.Del(name)
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", NewErrHttpInvoke(req, reqBody, resp, "", err)
	}

	defer resp.Body.Close()
	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewErrHttpInvoke(req, reqBody, resp, "", err)
	}
	respBody := string(respBodyBytes)
	if !HttpStatusIsSuccess(resp.StatusCode) {
		return "", NewErrHttpInvoke(req, reqBody, resp, respBody, nil)
	}

	return respBody, nil
}

func HttpStatusIsSuccess(status int) bool {
	return status >= 200 && status < 300
}

type ErrHttpInvoke struct {
	Method  string
	Url     string
	ReqBody string

	StatusCode int
	StatusText string
	RespBody   string

	Cause error
}

func NewErrHttpInvoke(req *http.Request, reqBody []byte, resp *http.Response, respBody string, cause error) *ErrHttpInvoke {
	err := ErrHttpInvoke{}
	err.Cause = cause
	err.ReqBody = string(reqBody)
	if req != nil {
		err.Method = req.Method
		err.Url = req.URL.String()
	}

	if resp != nil {
		err.StatusCode = resp.StatusCode
		err.StatusText = resp.Status
		err.RespBody = respBody
	}
	return &err
}

// Error omits request headers, they carry webhook secrets.
func (e *ErrHttpInvoke) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("http invoke failed. request %s %s: %v", e.Method, e.Url, e.Cause)
	}
	return fmt.Sprintf("http invoke failed. request %s %s, response %d %s, body: '%s'",
		e.Method, e.Url, e.StatusCode, e.StatusText, e.RespBody)
}

func (e *ErrHttpInvoke) Unwrap() error {
	return e.Cause
}
