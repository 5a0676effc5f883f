package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"backoffice/infra/tracing"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/elastic/go-elasticsearch/v7/estransport"
	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	SearchFunc = Search
	IndexFunc  = Index
)

type H map[string]interface{}

type ESSearchResult struct {
	Took    int          `json:"took"`
	TimeOut bool         `json:"timed_out"`
	Hits    ESSearchHits `json:"hits"`
}

type ESSearchHits struct {
	Total    ESSearchHitsTotal `json:"total"`
	MaxScore float64           `json:"max_score"`
	Hits     []ESSearchHit     `json:"hits"`
}

type ESSearchHitsTotal struct {
	Value    int    `json:"value"`
	Relation string `json:"relation"`
}

type ESSearchHit struct {
	Index  string          `json:"_index"`
	Id     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// ActiveESClient is nil when no elasticsearch address is configured, indexing and search are disabled then.
var ActiveESClient *elasticsearch.Client

var ErrDisabled = errors.New("elasticsearch is not configured")

func Enabled() bool {
	return ActiveESClient != nil
}

// CreateClient connects to addresses, falling back to ELASTICSEARCH_URL when addresses is empty.
func CreateClient(addresses []string) (*elasticsearch.Client, error) {
	debug := os.Getenv("GIN_MODE") == "debug"
	conf := elasticsearch.Config{
		Addresses: addresses,
		Logger:    &estransport.TextLogger{Output: os.Stdout, EnableRequestBody: debug, EnableResponseBody: debug},
		Transport: &tracing.TracingTransport{Transport: http.DefaultTransport},
	}
	client, err := elasticsearch.NewClient(conf)
	if err != nil {
		return nil, err
	}
	ActiveESClient = client
	return client, nil
}

func Index(ctx context.Context, index string, id types.ID, doc interface{}) error {
	if !Enabled() {
		return ErrDisabled
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id.String(),
		Body:       bytes.NewReader(buf.Bytes()),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, ActiveESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error response status %s", res.Status())
	}
	logrus.Debugln(res.String())
	return nil
}

func Search(ctx context.Context, index string, query interface{}) (*ESSearchResult, error) {
	if !Enabled() {
		return nil, ErrDisabled
	}
	var q bytes.Buffer
	if err := json.NewEncoder(&q).Encode(query); err != nil {
		return nil, err
	}

	res, err := ActiveESClient.Search(
		ActiveESClient.Search.WithContext(ctx),
		ActiveESClient.Search.WithIndex(index),
		ActiveESClient.Search.WithBody(&q),
		ActiveESClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, res.String())
	}
	r := ESSearchResult{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
