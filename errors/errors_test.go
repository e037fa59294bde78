package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"timeout is a persistence failure", ErrPersistenceTimeout, CodePersistenceFailure},
		{"wrapped persistence failure", fmt.Errorf("%w: disk full", ErrPersistenceFailure), CodePersistenceFailure},
		{"validation", fmt.Errorf("%w: text too long", ErrInvalidMessage), CodeInvalidMessage},
		{"unauthorized", ErrUnauthorizedRoom, CodeUnauthorized},
		{"busy", ErrRoomBusy, CodeRoomBusy},
		{"absent", ErrRegistrationAbsent, CodeNotJoined},
		{"missing chat", fmt.Errorf("%w: room-9", ErrChatNotFound), CodeNotFound},
		{"shutting down", ErrStopped, CodeUnavailable},
		{"unknown", context.Canceled, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, Code(tt.err))
		})
	}
}
