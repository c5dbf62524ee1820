package macaddr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customerrors "github.com/bavix/presence/internal/errors"
	"github.com/bavix/presence/internal/macaddr"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "colon lower", input: "aa:bb:cc:dd:ee:ff", want: "AA:BB:CC:DD:EE:FF"},
		{name: "dash", input: "aa-bb-cc-dd-ee-01", want: "AA:BB:CC:DD:EE:01"},
		{name: "cisco dots", input: "aabb.ccdd.ee02", want: "AA:BB:CC:DD:EE:02"},
		{name: "bare", input: "001122334455", want: "00:11:22:33:44:55"},
		{name: "too short", input: "aa:bb:cc", wantErr: customerrors.ErrMACAddressInvalidLength},
		{name: "bad hex", input: "zz:bb:cc:dd:ee:ff", wantErr: customerrors.ErrMACAddressInvalidCharacters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := macaddr.Normalize(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, macaddr.Valid(tt.input))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, macaddr.Valid(tt.input))
		})
	}
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", macaddr.Canonical(" aa:bb:cc:dd:ee:ff\n"))
}
