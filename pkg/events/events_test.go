package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

func TestSubject(t *testing.T) {
	p := &NATSPublisher{config: config.NewEventsConfig()}

	assert.Equal(t, "identity.account.activated", p.Subject(types.EventAccountActivated))
	assert.Equal(t, "identity.group.deleted", p.Subject(types.EventGroupDeleted))
}

func TestJoinURLs(t *testing.T) {
	assert.Equal(t, "nats://localhost:4222", joinURLs(nil))
	assert.Equal(t, "nats://a:4222", joinURLs([]string{"nats://a:4222"}))
	assert.Equal(t, "nats://a:4222,nats://b:4222", joinURLs([]string{"nats://a:4222", "nats://b:4222"}))
}

func TestNewLifecycleEvent(t *testing.T) {
	event := types.NewLifecycleEvent(types.EventAccountDeactivated)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, types.EventAccountDeactivated, event.Kind)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestNoOpPublisher(t *testing.T) {
	p := NewNoOpPublisher()

	event := types.NewLifecycleEvent(types.EventAccountActivated)
	event.UID = "jdoe"

	require.NoError(t, p.Publish(context.Background(), event))
	require.NoError(t, p.Close())
}
