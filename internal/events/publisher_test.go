package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherDrivers(t *testing.T) {
	for _, driver := range []string{"", DriverNone} {
		p, err := NewPublisher(Config{Driver: driver})
		require.NoError(t, err)
		assert.IsType(t, NoopPublisher{}, p)
		assert.NoError(t, p.Publish(context.Background(), NewEvent(SubjectSessionBooked, "s1")))
		assert.NoError(t, p.Close())
	}

	_, err := NewPublisher(Config{Driver: "kafka"})
	assert.ErrorContains(t, err, `unknown events driver "kafka"`)
}

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent(SubjectReviewSubmitted, "65f000000000000000000001")

	_, err := uuid.Parse(event.ID)
	require.NoError(t, err)
	assert.Equal(t, SubjectReviewSubmitted, event.EventType)
	assert.Equal(t, "65f000000000000000000001", event.SessionID)
	assert.False(t, event.At.Before(before))

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "event_id")
	assert.Contains(t, fields, "event_type")
	assert.NotContains(t, fields, "visitor_id")
}
