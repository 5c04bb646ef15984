package rpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fbksd/fbksd-server/pkg/store"
)

func TestLogicMessageMapsKnownDomainErrors(t *testing.T) {
	msg, ok := logicMessage(store.ErrNameAlreadyExists)
	assert.True(t, ok)
	assert.Equal(t, "NameAlreadyExists", msg)

	msg, ok = logicMessage(store.ErrMaxWorkspacesExceeded)
	assert.True(t, ok)
	assert.Equal(t, "MaxWorkspacesExceeded", msg)
}

func TestLogicMessageUnwrapsWrappedErrors(t *testing.T) {
	bareString := errors.New("register: " + store.ErrNotRegistered.Error())
	_, ok := logicMessage(bareString)
	assert.False(t, ok, "logicMessage only matches errors.Is, not string containment")

	wrapped := fmt.Errorf("store: register: %w", store.ErrNotRegistered)
	msg, ok := logicMessage(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "NotRegistered", msg)
}

func TestLogicMessageRejectsUnknownErrors(t *testing.T) {
	_, ok := logicMessage(errors.New("some unrelated failure"))
	assert.False(t, ok)
}
