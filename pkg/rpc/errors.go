package rpc

import (
	"errors"

	"github.com/fbksd/fbksd-server/pkg/store"
)

// domainErrors lists the store-layer sentinels that count as Logic
// errors on the wire, paired with their wire message.
var domainErrors = []struct {
	err     error
	message string
}{
	{store.ErrNameAlreadyExists, "NameAlreadyExists"},
	{store.ErrNotRegistered, "NotRegistered"},
	{store.ErrInvalidInfoFile, "InvalidInfoFile"},
	{store.ErrAlreadyPublished, "AlreadyPublished"},
	{store.ErrMaxWorkspacesExceeded, "MaxWorkspacesExceeded"},
	{store.ErrWorkspaceNotFinished, "Unspecified"},
	{store.ErrTaskAlreadyPending, "Unspecified"},
	{store.ErrWorkspaceNotFound, "Unspecified"},
	{store.ErrUnspecified, "Unspecified"},
}

// logicMessage reports whether err is a known domain error and, if so,
// the message to carry on the wire's Logic(message) variant.
func logicMessage(err error) (string, bool) {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			return de.message, true
		}
	}
	return "", false
}
