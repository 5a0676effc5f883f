package tracing

import (
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// TracingTransport starts a client span for every request whose context carries a span.
type TracingTransport struct {
	Transport http.RoundTripper
}

func NewTracingClient(client *http.Client) *http.Client {
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c := *client
	c.Transport = &TracingTransport{Transport: transport}
	return &c
}

func (t *TracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	parentSpan := opentracing.SpanFromContext(req.Context())
	if parentSpan == nil {
		return t.Transport.RoundTrip(req)
	}

	tracer := parentSpan.Tracer()
	childSpan := tracer.StartSpan(req.Method+" "+req.URL.Path, opentracing.ChildOf(parentSpan.Context()))
	defer childSpan.Finish()

	ext.SpanKindRPCClient.Set(childSpan)
	ext.HTTPUrl.Set(childSpan, req.URL.String())
	ext.HTTPMethod.Set(childSpan, req.Method)

	// Inject the client span context into the headers
	_ = tracer.Inject(childSpan.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))
	res, err := t.Transport.RoundTrip(req)
	if err != nil {
		ext.Error.Set(childSpan, true)
		childSpan.SetTag("error.detail", err.Error())
		return res, err
	}

	ext.HTTPStatusCode.Set(childSpan, uint16(res.StatusCode))
	ext.Error.Set(childSpan, res.StatusCode >= 400)
	return res, nil
}
