package leddar

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequest(t *testing.T) {
	testCases := []struct {
		name    string
		request Request
		expect  []byte
	}{
		{"default", DefaultRequest(DefaultAddress), []byte{0x01, 0x04, 0x00, 0x14, 0x00, 0x0a, 0x30, 0x09}},
		{"custom", Request{Address: 0x02, Function: 0x03, Register: 0x0102, Count: 1}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.request.Bytes()
			if tc.expect != nil {
				require.Equal(t, tc.expect, b[:])
			}
			require.Equal(t, tc.request.Address, b[0])
			require.Equal(t, tc.request.Function, b[1])
			require.True(t, VerifyChecksum(b[:], RequestSize-2))

			var buf bytes.Buffer
			n, err := tc.request.WriteTo(&buf)
			require.NoError(t, err)
			require.EqualValues(t, RequestSize, n)
			require.Equal(t, b[:], buf.Bytes())
		})
	}
}
