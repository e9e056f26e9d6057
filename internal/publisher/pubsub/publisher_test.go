package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/webcapture/internal/capture"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishJobEvent(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "captures")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Close()

	msg := "device mobile: timeout"
	event := capture.JobEvent{
		JobID:      "job-1",
		WebsiteID:  "site-1",
		URL:        "https://example.com",
		Status:     capture.JobStatusFailed,
		Progress:   50,
		Error:      &msg,
		OccurredAt: time.Unix(1700000000, 0).UTC(),
	}
	id, err := pub.Publish(ctx, "captures", event)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "capture.failed", msgs[0].Attributes["event"])
	require.Equal(t, "job-1", msgs[0].Attributes["job_id"])

	var decoded capture.JobEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	require.Equal(t, event.JobID, decoded.JobID)
	require.Equal(t, msg, *decoded.Error)
}

func TestPublishValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "captures", "x")
	require.Error(t, err)

	client, _ := newTestClient(t)
	_, err = New(client).Publish(context.Background(), "", "x")
	require.Error(t, err)
}

func TestPublishMissingTopicFails(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	pub := New(client)
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := pub.Publish(ctx, "missing", map[string]string{"k": "v"})
	require.Error(t, err)
}
