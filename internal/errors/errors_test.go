package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	customerrors "github.com/bavix/presence/internal/errors"
)

func TestErrFeedUnavailableWithName(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 1")
	err := customerrors.ErrFeedUnavailableWithName("wireless", cause)

	assert.ErrorIs(t, err, customerrors.ErrFeedUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "wireless")

	assert.ErrorIs(t, customerrors.ErrFeedUnavailableWithName("leases", nil), customerrors.ErrFeedUnavailable)
}

func TestWrappedConstructors(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, customerrors.ErrIconNotFoundWithPath("x.png"), customerrors.ErrIconNotFound)
	assert.ErrorIs(t, customerrors.ErrDeviceNotAssociatedWithMAC("AA"), customerrors.ErrDeviceNotAssociated)
	assert.ErrorIs(t, customerrors.ErrRequiredToolNotFoundWithTool("ubus"), customerrors.ErrRequiredToolNotFound)
}
