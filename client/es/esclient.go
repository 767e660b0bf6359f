package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/fundwit/go-commons/types"
)

var (
	ActiveESClient *elasticsearch.Client

	IndexFunc              = Index
	SearchFunc             = Search
	DeleteDocumentByIdFunc = DeleteDocumentById
)

type H map[string]interface{}

// BootESClient ES_ADDRESSES=http://127.0.0.1:9200,http://127.0.0.2:9200
func BootESClient(addresses string) error {
	if addresses == "" {
		return nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(addresses, ","),
	})
	if err != nil {
		return err
	}
	ActiveESClient = client
	return nil
}

func Index(index string, id types.ID, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id.String(),
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(context.Background(), ActiveESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		respBody, _ := ioutil.ReadAll(res.Body)
		return fmt.Errorf("index document %s/%s: %s %s", index, id, res.Status(), string(respBody))
	}
	return nil
}

func DeleteDocumentById(index string, id types.ID) error {
	req := esapi.DeleteRequest{Index: index, DocumentID: id.String()}
	res, err := req.Do(context.Background(), ActiveESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		respBody, _ := ioutil.ReadAll(res.Body)
		return fmt.Errorf("delete document %s/%s: %s %s", index, id, res.Status(), string(respBody))
	}
	return nil
}

type searchResult struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func Search(index string, query H) ([]json.RawMessage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := ActiveESClient.Search(
		ActiveESClient.Search.WithIndex(index),
		ActiveESClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		respBody, _ := ioutil.ReadAll(res.Body)
		return nil, fmt.Errorf("search %s: %s %s", index, res.Status(), string(respBody))
	}

	result := searchResult{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, err
	}

	sources := make([]json.RawMessage, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		sources = append(sources, hit.Source)
	}
	return sources, nil
}
