package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"validation matches kind", Validation("title is required"), ErrValidation, true},
		{"storage matches kind", Storage("insert failed", errors.New("disk full")), ErrStorage, true},
		{"storage does not match provider", Storage("insert failed", nil), ErrProvider, false},
		{"wrapped provider matches", fmt.Errorf("sign in: %w", Provider("bad", nil)), ErrProvider, true},
		{"plain error matches nothing", errors.New("boom"), ErrStorage, false},
		{"not authenticated", NotAuthenticated(), ErrNotAuthenticated, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestStorageUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage("failed to list tasks", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to list tasks: connection reset", err.Error())
	assert.Equal(t, "failed to list tasks", Message(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("x")))
	assert.Equal(t, KindConfiguration, KindOf(fmt.Errorf("startup: %w", Configuration("x"))))
	assert.Equal(t, Kind(""), KindOf(errors.New("x")))
}

func TestPayloadRoundTrip(t *testing.T) {
	assert.Nil(t, ToPayload(nil, KindStorage))
	assert.Nil(t, (*Payload)(nil).Err())

	p := ToPayload(Validation("Passwords do not match"), KindProvider)
	assert.Equal(t, KindValidation, p.Kind)
	restored := p.Err()
	assert.ErrorIs(t, restored, ErrValidation)
	assert.Equal(t, "Passwords do not match", Message(restored))

	p = ToPayload(errors.New("socket closed"), KindStorage)
	assert.Equal(t, KindStorage, p.Kind)
	assert.ErrorIs(t, p.Err(), ErrStorage)
}

func TestMessageHidesUnclassified(t *testing.T) {
	assert.Equal(t, "something went wrong", Message(errors.New("pq: relation does not exist")))
}

func TestWrapKeepsSentinel(t *testing.T) {
	errMismatch := errors.New("passwords do not match")
	err := Wrap(KindValidation, errMismatch)

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, errMismatch)
	assert.Equal(t, "passwords do not match", err.Error())
	assert.Nil(t, Wrap(KindStorage, nil))
}
