package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/searchbox/searchbox/internal/document"
	"github.com/searchbox/searchbox/internal/elastic"
)

// This integration test is skipped by default. To run it locally, set
// RUN_ES_INTEGRATION=1 in your environment. It requires a reachable
// Elasticsearch, for example one started with `searchbox --stack-up`.
func TestDocumentRoundtrip(t *testing.T) {
	if os.Getenv("RUN_ES_INTEGRATION") != "1" {
		t.Skip("skipping integration test; set RUN_ES_INTEGRATION=1 to enable")
	}

	url := os.Getenv("SEARCHBOX_ES_URL")
	if url == "" {
		url = "http://localhost:9200"
	}
	index := "documents-integration"

	client, err := elastic.NewClient(url)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := elastic.Wait(ctx, client, elastic.DefaultWaitOptions()); err != nil {
		t.Fatalf("cluster not reachable: %v", err)
	}
	if err := client.EnsureIndex(ctx, index, document.Mapping()); err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	doc := document.Document{Author: "integration", Text: "roundtrip smoke"}
	id, err := client.IndexDocument(ctx, index, doc)
	if err != nil {
		t.Fatalf("index document: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated document id")
	}

	src, err := client.GetDocument(ctx, index, id)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if src["author"] != "integration" {
		t.Fatalf("unexpected document source: %v", src)
	}

	if err := client.DeleteDocument(ctx, index, id); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	if _, err := client.GetDocument(ctx, index, id); err == nil {
		t.Fatal("expected get after delete to fail")
	}
}
