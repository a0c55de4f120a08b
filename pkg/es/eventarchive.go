package es

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/augmentac/ff2api-postback/pkg/logger"
	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
)

// EventArchiveClient searches the indexed archive of communication events
// (emails, calls, system updates) associated with loads
type EventArchiveClient struct {
	client *elasticsearch.Client
	index  string
	log    *logger.Logger
}

// EventSummary describes the archived event history for one load
type EventSummary struct {
	Count      int64
	LatestCode string
	LatestAt   string
}

// NewEventArchiveClient creates a new event archive client
func NewEventArchiveClient(addresses []string, username, password, index string, log *logger.Logger) (*EventArchiveClient, error) {
	cfg := elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create event archive client: %w", err)
	}

	// Ping to verify connection
	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping event archive: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("failed to ping event archive: %s", res.String())
	}

	return &EventArchiveClient{
		client: client,
		index:  index,
		log:    log,
	}, nil
}

// SearchLoadEvents returns an event summary for one brokerage load number:
// total archived events and the most recent one
func (e *EventArchiveClient) SearchLoadEvents(ctx context.Context, loadNumber string) (*EventSummary, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"load_number": loadNumber,
			},
		},
		"sort": []map[string]interface{}{
			{"createdAt": map[string]interface{}{"order": "desc"}},
		},
		"size": 1,
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  strings.NewReader(string(queryJSON)),
	}

	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("failed to search events: %s", res.String())
	}

	// Parse the response
	var searchResponse map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&searchResponse); err != nil {
		return nil, fmt.Errorf("failed to decode event search response: %w", err)
	}

	hits, ok := searchResponse["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("event search response has no hits")
	}

	summary := &EventSummary{}
	if total, ok := hits["total"].(map[string]interface{}); ok {
		if value, ok := total["value"].(float64); ok {
			summary.Count = int64(value)
		}
	}

	if hitList, ok := hits["hits"].([]interface{}); ok && len(hitList) > 0 {
		if hit, ok := hitList[0].(map[string]interface{}); ok {
			if source, ok := hit["_source"].(map[string]interface{}); ok {
				if code, ok := source["code"].(string); ok {
					summary.LatestCode = code
				}
				if createdAt, ok := source["createdAt"].(string); ok {
					summary.LatestAt = createdAt
				}
			}
		}
	}

	return summary, nil
}
