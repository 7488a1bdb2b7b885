// Package audit writes a summary document per batch run into elasticsearch so
// operators can query the run history. Strictly best-effort: an indexing
// failure is logged and never affects the run.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"appointment-notifier/internal/common/logger"
	"appointment-notifier/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

type runDocument struct {
	RunID      string                   `json:"runId"`
	Reason     string                   `json:"reason"`
	Outcome    string                   `json:"outcome"`
	Error      string                   `json:"error,omitempty"`
	Stats      *models.ReminderRunStats `json:"stats,omitempty"`
	RecordedAt time.Time                `json:"recordedAt"`
}

// Indexer records batch runs in a single elasticsearch index.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "run-audit"}),
	}
}

func (i *Indexer) RecordRun(ctx context.Context, runID, reason string, stats *models.ReminderRunStats, runErr error) {
	doc := runDocument{
		RunID:      runID,
		Reason:     reason,
		Outcome:    "success",
		Stats:      stats,
		RecordedAt: time.Now().UTC(),
	}
	if runErr != nil {
		doc.Outcome = "failed"
		doc.Error = runErr.Error()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		i.logger.Warn("failed to marshal run audit document", map[string]interface{}{
			"runId": runID,
			"error": err.Error(),
		})
		return
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(runID),
	)
	if err != nil {
		i.logger.Warn("failed to index run audit document", map[string]interface{}{
			"runId": runID,
			"error": err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Warn("elasticsearch rejected run audit document", map[string]interface{}{
			"runId":  runID,
			"status": res.Status(),
		})
	}
}
