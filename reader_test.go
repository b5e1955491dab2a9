package meg

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReadsEntries(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "sample.meg", buildV1Archive(t, sampleEntries()))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, V1, f.Version)
	assert.False(t, f.Encrypted)
	require.Equal(t, len(sampleEntries()), f.Archive.Len())

	for _, want := range sampleEntries() {
		entry, ok := f.FindEntry(want.path)
		require.True(t, ok, want.path)

		got, err := f.ReadEntry(entry)
		require.NoError(t, err)
		assert.Equal(t, len(want.data), len(got))
		if len(want.data) > 0 {
			assert.Equal(t, want.data, got)
		}
	}

	_, ok := f.FindEntry(`DATA\MISSING.XML`)
	assert.False(t, ok)
}

func TestOpenEntryUsesIndependentHandles(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "sample.meg", buildV1Archive(t, sampleEntries()))
	f, err := Open(path)
	require.NoError(t, err)

	entry, ok := f.FindEntry(`DATA\XML\GAMEOBJECTFILES.XML`)
	require.True(t, ok)

	first, err := f.OpenEntry(entry)
	require.NoError(t, err)
	second, err := f.OpenEntry(entry)
	require.NoError(t, err)

	a, err := first.ReadByte()
	require.NoError(t, err)
	b, err := second.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	require.NoError(t, first.Close())
	_, err = second.ReadByte()
	require.NoError(t, err)
	require.NoError(t, second.Close())

	_, err = f.OpenEntry(DataEntry{FilePath: "NOPE"})
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestOpenEmptyArchive(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "empty.meg", buildV1Archive(t, nil))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, f.Archive.Len())
}

func TestOpenRejectsCorruptedArchives(t *testing.T) {
	t.Parallel()

	valid := buildV1Archive(t, sampleEntries())

	unsorted := bytes.Clone(valid)
	md, err := ReadMetadataFrom(bytes.NewReader(valid))
	require.NoError(t, err)
	fileTableStart := md.Header.Size() + md.NameTable.Size()
	// Swap first and last crc to break ordering.
	firstCrc := unsorted[fileTableStart : fileTableStart+4]
	lastStart := fileTableStart + md.FileTable.Size() - fileRecordSize
	lastCrc := unsorted[lastStart : lastStart+4]
	tmp := bytes.Clone(firstCrc)
	copy(firstCrc, lastCrc)
	copy(lastCrc, tmp)

	unequal := bytes.Clone(valid)
	binary.LittleEndian.PutUint32(unequal[4:8], 99)

	tests := []struct {
		wantErr error
		name    string
		data    []byte
	}{
		{name: "empty file", data: nil, wantErr: ErrCorruptedData},
		{name: "trailing byte", data: append(bytes.Clone(valid), 0), wantErr: ErrCorruptedData},
		{name: "missing data byte", data: valid[:len(valid)-1], wantErr: ErrCorruptedData},
		{name: "truncated tables", data: valid[:20], wantErr: ErrCorruptedData},
		{name: "unsorted", data: unsorted, wantErr: ErrCorruptedData},
		{name: "unequal header", data: unequal, wantErr: ErrCorruptedData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFixture(t, "bad.meg", tt.data)
			_, err := Open(path)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenSkipSizeValidation(t *testing.T) {
	t.Parallel()

	data := append(buildV1Archive(t, sampleEntries()), "trailer"...)
	path := writeFixture(t, "trailing.meg", data)

	_, err := Open(path)
	require.ErrorIs(t, err, ErrCorruptedData)

	f, err := OpenWithOptions(path, ReaderOptions{SkipSizeValidation: true})
	require.NoError(t, err)
	assert.Equal(t, len(sampleEntries()), f.Archive.Len())
}

func TestOpenRejectsExtendedVersions(t *testing.T) {
	t.Parallel()

	raw := []byte{
		0xFF, 0xFF, 0xFF, 0xFF, 0xa4, 0x70, 0x7d, 0x3f,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	path := writeFixture(t, "v2.meg", raw)

	_, err := Open(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestOpenVerifyNameChecksums(t *testing.T) {
	t.Parallel()

	data := buildV1Archive(t, []fixtureEntry{{path: "A", data: []byte("1")}})
	path := writeFixture(t, "sum.meg", data)

	_, err := OpenWithOptions(path, ReaderOptions{VerifyNameChecksums: true})
	require.NoError(t, err)

	_, err = OpenWithOptions(path, ReaderOptions{VerifyNameChecksums: true, Hasher: constHasher{crc: 1}})
	require.ErrorIs(t, err, ErrCorruptedData)
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir() + "/missing.meg")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	data := buildV1Archive(t, sampleEntries())
	archive, err := Load(bytes.NewReader(data), int64(len(data)), ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(sampleEntries()), archive.Len())

	_, err = Load(bytes.NewReader(data), int64(len(data))+1, ReaderOptions{})
	require.ErrorIs(t, err, ErrCorruptedData)

	_, err = Load(nil, 0, ReaderOptions{})
	require.ErrorIs(t, err, ErrNilReader)

	_, err = Load(bytes.NewReader(data), -1, ReaderOptions{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListEntriesAndReadMetadataFile(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "list.meg", buildV1Archive(t, sampleEntries()))

	entries, err := ListEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, len(sampleEntries()))
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i-1].Crc32, entries[i].Crc32)
	}

	md, err := ReadMetadataFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, len(sampleEntries()), md.Header.NumFiles)
	assert.Len(t, md.NameTable, len(sampleEntries()))
	assert.True(t, ValidateTables(md).Valid)

	_, err = ReadMetadataFrom(nil)
	require.ErrorIs(t, err, ErrNilReader)
}

func TestListEntriesWithOptionsTrailingBytes(t *testing.T) {
	t.Parallel()

	data := append(buildV1Archive(t, sampleEntries()), 0xAA, 0xBB)
	path := writeFixture(t, "trailing.meg", data)

	_, err := ListEntries(path)
	require.ErrorIs(t, err, ErrCorruptedData)

	entries, err := ListEntriesWithOptions(path, ReaderOptions{SkipSizeValidation: true})
	require.NoError(t, err)
	assert.Len(t, entries, len(sampleEntries()))
}
