package meg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrc32Bytes(t *testing.T) {
	t.Parallel()

	c := Crc32(0xCBF43926)
	assert.Equal(t, []byte{0x26, 0x39, 0xF4, 0xCB}, c.Bytes())

	got, err := Crc32FromBytes(c.Bytes())
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = Crc32FromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCrc32CompareAndString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -1, Crc32(0).Compare(1))
	assert.Equal(t, 0, Crc32(5).Compare(5))
	assert.Equal(t, 1, Crc32(0xFFFFFFFF).Compare(0))
	assert.Equal(t, "0000ABCD", Crc32(0xABCD).String())
}

func TestIEEEHasher(t *testing.T) {
	t.Parallel()

	var h Hasher = IEEEHasher{}
	assert.Equal(t, Crc32(0), h.Checksum(nil))
	assert.Equal(t, Crc32(0xCBF43926), h.Checksum([]byte("123456789")))
}
