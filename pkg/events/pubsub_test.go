package events

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"

	"github.com/digesthq/feed-digest/internal/domain"
)

func TestGCPPubSubPublisherPublishes(t *testing.T) {
	// Use the in-memory Pub/Sub emulator.
	server := pstest.NewServer()
	defer server.Close()
	defer os.Unsetenv("PUBSUB_EMULATOR_HOST")
	os.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := client.CreateTopic(ctx, "digest-events"); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	pub, err := newGCPPubSubPublisher(ctx, PublisherConfig{
		ID:   "gcp-1",
		Type: TypeGCPPubSub,
		GCP: &GCPQueueConfig{
			ProjectID: "test-project",
			Topic:     "digest-events",
		},
	}, nil)
	if err != nil {
		t.Fatalf("newGCPPubSubPublisher: %v", err)
	}

	err = pub.Publish(ctx, NewEvent(ActionCreated, domain.Digest{UUID: "uuid-1"}))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestGCPPubSubPublisherRequiresConfig(t *testing.T) {
	if _, err := newGCPPubSubPublisher(context.Background(), PublisherConfig{ID: "g", Type: TypeGCPPubSub}, nil); err == nil {
		t.Fatalf("expected error for missing gcp config")
	}
}
