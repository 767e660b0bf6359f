package indices

import (
	"encoding/json"

	"reqflow/client/es"
	"reqflow/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	RequestIndexName = "requests"

	IndexRequestFunc = IndexRequest
)

type RequestDocument struct {
	domain.RequestRecord
}

func IndexRequest(rec *domain.RequestRecord) error {
	if es.ActiveESClient == nil {
		return nil
	}
	return es.IndexFunc(RequestIndexName, rec.ID, RequestDocument{RequestRecord: *rec})
}

// SyncRequestIndex mirror the request document after a state transition.
// Best effort: the search index lags behind, never blocks a transition.
func SyncRequestIndex(rec *domain.RequestRecord) {
	if err := IndexRequestFunc(rec); err != nil {
		logrus.Warnf("index request %d failed: %v", rec.ID, err)
	}
}

// RemoveRequestIndex drop the mirrored document of a deleted request.
func RemoveRequestIndex(id types.ID) {
	if es.ActiveESClient == nil {
		return
	}
	if err := es.DeleteDocumentByIdFunc(RequestIndexName, id); err != nil {
		logrus.Warnf("remove request index %d failed: %v", id, err)
	}
}

// SearchPendingRequests requests currently awaiting an action from the approver.
func SearchPendingRequests(approverID types.ID) ([]RequestDocument, error) {
	if es.ActiveESClient == nil {
		return []RequestDocument{}, nil
	}

	sources, err := es.SearchFunc(RequestIndexName, es.H{
		"query": es.H{
			"term": es.H{"pendingApproverIds": approverID.String()},
		},
	})
	if err != nil {
		return nil, err
	}

	docs := make([]RequestDocument, 0, len(sources))
	for _, source := range sources {
		doc := RequestDocument{}
		if err := json.Unmarshal(source, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
