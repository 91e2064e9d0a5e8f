package events

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), SubjectRecipeCreated, map[string]interface{}{"recipe_id": 1}))
}

func TestNatsPublisherWritesToStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed, skipping container-based test")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)

	pub, err := NewNatsPublisher(endpoint, "TEST_RECIPES")
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish(ctx, SubjectReviewChanged, map[string]interface{}{"review_id": 7}))

	nc, err := nats.Connect(endpoint)
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(ctx, "TEST_RECIPES")
	require.NoError(t, err)
	msg, err := stream.GetLastMsgForSubject(ctx, SubjectReviewChanged)
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	assert.Equal(t, SubjectReviewChanged, evt.Subject)
	assert.Equal(t, float64(7), evt.Data["review_id"])
}
