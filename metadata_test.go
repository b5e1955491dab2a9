package meg

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		names NameTable
		files FileTable
	}{
		{name: "empty", names: NameTable{}, files: FileTable{}},
		{
			name:  "duplicates keep order",
			names: NameTable{{Name: "B"}, {Name: "A"}, {Name: `DATA\X.XML`}},
			files: FileTable{
				{Crc32: 1, FileTableRecordIndex: 0, FileSize: 3, FileOffset: 90, FileNameIndex: 2},
				{Crc32: 7, FileTableRecordIndex: 1, FileSize: 0, FileOffset: 93, FileNameIndex: 0},
				{Crc32: 7, FileTableRecordIndex: 2, FileSize: 9, FileOffset: 93, FileNameIndex: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			count := uint32(len(tt.files))
			header, err := NewHeader(count, count)
			require.NoError(t, err)

			md, err := NewMetadata(header, tt.names, tt.files)
			require.NoError(t, err)

			var buf bytes.Buffer
			n, err := WriteMetadata(&buf, md)
			require.NoError(t, err)
			assert.Equal(t, md.Size(), n)
			assert.Equal(t, md.Bytes(), buf.Bytes())

			mr, err := NewMetadataReader(V1)
			require.NoError(t, err)

			got, read, err := mr.ReadMetadata(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, n, read)
			assert.Equal(t, md.Header, got.Header)
			assert.Equal(t, md.NameTable, got.NameTable)
			assert.Equal(t, md.FileTable, got.FileTable)
		})
	}
}

func TestMetadataSizes(t *testing.T) {
	t.Parallel()

	names := NameTable{{Name: "AB"}, {Name: ""}}
	files := FileTable{{FileSize: 5}, {FileSize: 7}}
	md, err := NewMetadata(Header{NumFileNames: 2, NumFiles: 2}, names, files)
	require.NoError(t, err)

	assert.EqualValues(t, 8, md.Header.Size())
	assert.EqualValues(t, 6, md.NameTable.Size())
	assert.EqualValues(t, 40, md.FileTable.Size())
	assert.EqualValues(t, 54, md.Size())
	assert.EqualValues(t, 12, md.FileTable.DataSize())
	assert.Len(t, md.Bytes(), 54)
}

func TestNewMetadataRejectsCountMismatch(t *testing.T) {
	t.Parallel()

	_, err := NewMetadata(Header{NumFileNames: 1, NumFiles: 1}, nil, FileTable{{}})
	require.ErrorIs(t, err, ErrCorruptedData)

	_, err = NewHeader(1, 2)
	require.ErrorIs(t, err, ErrCorruptedData)

	_, err = NewHeader(math.MaxInt32+1, math.MaxInt32+1)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewNameTableRecordLength(t *testing.T) {
	t.Parallel()

	_, err := NewNameTableRecord(strings.Repeat("A", MaxEntryPathLength))
	require.NoError(t, err)

	_, err = NewNameTableRecord(strings.Repeat("A", MaxEntryPathLength+1))
	require.ErrorIs(t, err, ErrInvalidEntryPath)
}

func TestWriteMetadataRejectsLongName(t *testing.T) {
	t.Parallel()

	header, err := NewHeader(1, 1)
	require.NoError(t, err)

	md := &Metadata{
		Header:    header,
		NameTable: NameTable{{Name: strings.Repeat("A", MaxEntryPathLength+1)}},
		FileTable: FileTable{{}},
	}

	var buf bytes.Buffer
	n, err := WriteMetadata(&buf, md)
	require.ErrorIs(t, err, ErrInvalidEntryPath)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())

	_, err = NewMetadata(md.Header, md.NameTable, md.FileTable)
	require.ErrorIs(t, err, ErrInvalidEntryPath)

	md.NameTable[0].Name = strings.Repeat("A", MaxEntryPathLength)
	_, err = WriteMetadata(&buf, md)
	require.NoError(t, err)

	mr, err := NewMetadataReader(V1)
	require.NoError(t, err)

	got, _, err := mr.ReadMetadata(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, got.NameTable[0].Name, MaxEntryPathLength)
}

func TestFileTableRecordCompare(t *testing.T) {
	t.Parallel()

	a := FileTableRecord{Crc32: 1, FileSize: 100}
	b := FileTableRecord{Crc32: 1, FileSize: 1}
	c := FileTableRecord{Crc32: 2}

	assert.Equal(t, 0, a.Compare(b))
	assert.Equal(t, -1, a.Compare(c))
	assert.Equal(t, 1, c.Compare(a))
}

func TestWriteMetadataNilWriter(t *testing.T) {
	t.Parallel()

	_, err := WriteMetadata(nil, &Metadata{})
	require.ErrorIs(t, err, ErrNilWriter)
}
