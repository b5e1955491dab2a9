package meg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tablesMetadata builds metadata over nameCount names and given file records.
func tablesMetadata(nameCount int, files FileTable) *Metadata {
	names := make(NameTable, nameCount)
	for i := range names {
		names[i] = NameTableRecord{Name: "N"}
	}

	return &Metadata{
		Header:    Header{NumFileNames: uint32(nameCount), NumFiles: uint32(len(files))},
		NameTable: names,
		FileTable: files,
	}
}

func TestValidateTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		md    *Metadata
		name  string
		valid bool
	}{
		{
			name:  "descending crc",
			md:    tablesMetadata(2, FileTable{{Crc32: 1, FileNameIndex: 0}, {Crc32: 0, FileNameIndex: 1}}),
			valid: false,
		},
		{
			name:  "name index out of range",
			md:    tablesMetadata(2, FileTable{{Crc32: 1, FileNameIndex: 0}, {Crc32: 0, FileNameIndex: 999}}),
			valid: false,
		},
		{
			name:  "ascending name index out of range",
			md:    tablesMetadata(2, FileTable{{Crc32: 0, FileNameIndex: 0}, {Crc32: 1, FileNameIndex: 2}}),
			valid: false,
		},
		{
			name: "duplicate crc tolerated",
			md: tablesMetadata(3, FileTable{
				{Crc32: 0, FileNameIndex: 0},
				{Crc32: 1, FileNameIndex: 1},
				{Crc32: 1, FileNameIndex: 2},
			}),
			valid: true,
		},
		{name: "empty", md: tablesMetadata(0, nil), valid: true},
		{name: "nil", md: nil, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := ValidateTables(tt.md)
			assert.Equal(t, tt.valid, res.Valid)
			if tt.valid {
				assert.Empty(t, res.Reason)
			} else {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestValidateSizeEmptyArchive(t *testing.T) {
	t.Parallel()

	md := tablesMetadata(0, nil)
	size := md.Size()
	require.EqualValues(t, headerSizeV1, size)

	tests := []struct {
		name      string
		bytesRead int64
		archive   int64
		valid     bool
	}{
		{name: "exact", bytesRead: size, archive: size, valid: true},
		{name: "bytes read plus one", bytesRead: size + 1, archive: size},
		{name: "bytes read minus one", bytesRead: size - 1, archive: size},
		{name: "archive plus one", bytesRead: size, archive: size + 1},
		{name: "archive minus one", bytesRead: size, archive: size - 1},
		{name: "both plus one", bytesRead: size + 1, archive: size + 1},
		{name: "negative", bytesRead: -1, archive: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := ValidateSize(SizeInfo{Metadata: md, BytesRead: tt.bytesRead, ArchiveSize: tt.archive})
			assert.Equal(t, tt.valid, res.Valid, res.Reason)
		})
	}
}

func TestValidateSizeCountsData(t *testing.T) {
	t.Parallel()

	md := tablesMetadata(2, FileTable{{Crc32: 0, FileSize: 10}, {Crc32: 1, FileSize: 5, FileNameIndex: 1}})
	want := md.Size() + 15

	assert.True(t, ValidateSize(SizeInfo{Metadata: md, BytesRead: want, ArchiveSize: want}).Valid)
	assert.False(t, ValidateSize(SizeInfo{Metadata: md, BytesRead: md.Size(), ArchiveSize: md.Size()}).Valid)
	assert.False(t, ValidateSize(SizeInfo{BytesRead: want, ArchiveSize: want}).Valid)
}

func TestValidateMetadataComposite(t *testing.T) {
	t.Parallel()

	bad := tablesMetadata(2, FileTable{{Crc32: 1}, {Crc32: 0, FileNameIndex: 1}})
	res := ValidateMetadata(SizeInfo{Metadata: bad, BytesRead: bad.Size(), ArchiveSize: bad.Size()})
	assert.False(t, res.Valid)

	good := tablesMetadata(0, nil)
	res = ValidateMetadata(SizeInfo{Metadata: good, BytesRead: good.Size(), ArchiveSize: good.Size()})
	assert.True(t, res.Valid)

	res = ValidateMetadata(SizeInfo{Metadata: good, BytesRead: good.Size(), ArchiveSize: good.Size() + 1})
	assert.False(t, res.Valid)
}
