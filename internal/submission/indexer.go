// internal/submission/indexer.go
package submission

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Indexer mirrors submitted packets into Elasticsearch so the back office
// can search them. Best-effort: failures are logged, never propagated.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "packet-indexer"}),
	}
}

// Index writes a flattened search document for the packet.
func (i *Indexer) Index(ctx context.Context, state *models.ProcessState, confirmationID string) {
	doc := map[string]interface{}{
		"confirmationId": confirmationID,
		"processId":      state.ProcessID,
		"buyerType":      state.BuyerType,
		"buyerName":      state.Buyer.Name,
		"buyerTaxId":     state.Buyer.TaxID,
		"city":           state.Buyer.City,
		"state":          state.Buyer.State,
		"teamMember":     state.TeamMember.Name,
		"submittedAt":    time.Now().UTC().Format(time.RFC3339),
	}
	if state.Company != nil {
		doc["companyLegalName"] = state.Company.LegalName
		doc["companyTaxId"] = state.Company.TaxID
	}

	body, err := json.Marshal(doc)
	if err != nil {
		i.logger.Warn("failed to marshal packet index document", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: confirmationID,
		Body:       strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		i.logger.Warn("packet indexing failed", map[string]interface{}{
			"confirmationId": confirmationID,
			"error":          err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Warn("packet indexing rejected", map[string]interface{}{
			"confirmationId": confirmationID,
			"status":         res.Status(),
		})
	}
}
