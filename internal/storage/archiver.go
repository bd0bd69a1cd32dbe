package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/logger"
)

// JobArchiver writes terminal job snapshots to Elasticsearch so results stay
// queryable after the in-memory record is garbage collected.
type JobArchiver struct {
	client *es.Client
	index  string
	logger logger.Interface
}

// NewJobArchiver creates an archiver writing to the given index.
func NewJobArchiver(client *es.Client, index string, log logger.Interface) (*JobArchiver, error) {
	if client == nil {
		return nil, errors.New("elasticsearch client is required")
	}
	if index == "" {
		return nil, errors.New("index name is required")
	}
	return &JobArchiver{
		client: client,
		index:  index,
		logger: log,
	}, nil
}

// ArchiveJob indexes a job snapshot keyed by job id. Re-archiving the same
// job overwrites the previous document.
func (a *JobArchiver) ArchiveJob(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return errors.New("snapshot is nil")
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode job snapshot: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      a.index,
		DocumentID: snapshot.ID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("index job snapshot: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index job snapshot %s: %s", snapshot.ID, res.String())
	}

	a.logger.Debug("job archived",
		"job_id", snapshot.ID,
		"index", a.index,
		"state", snapshot.State,
	)
	return nil
}
