package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "tap", Body: []byte("evt-1")}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "tap", msg.Type)
		assert.Equal(t, "evt-1", string(msg.Body))
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: "tap", Body: []byte("8b1c7a2e")}
	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDeserializeWithoutType(t *testing.T) {
	got, err := deserialize("no-separator")
	require.NoError(t, err)
	assert.Empty(t, got.Type)
	assert.Equal(t, "no-separator", string(got.Body))
}
