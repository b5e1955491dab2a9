package meg

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openFixture writes archive entries to disk and opens them.
func openFixture(t *testing.T, entries []fixtureEntry) *File {
	t.Helper()

	path := writeFixture(t, "fixture.meg", buildV1Archive(t, entries))
	f, err := Open(path)
	require.NoError(t, err)
	return f
}

func TestExtractAll(t *testing.T) {
	t.Parallel()

	f := openFixture(t, sampleEntries())
	dst := t.TempDir()

	var (
		mu   sync.Mutex
		done int
	)
	err := f.Extract(context.Background(), dst, ExtractOptions{
		MaxWorkers: 2,
		OnEntryDone: func(DataEntry, int64, string) {
			mu.Lock()
			done++
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.Equal(t, len(sampleEntries()), done)

	for _, e := range sampleEntries() {
		rel, err := normalizeExtractEntryPath(e.path)
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, len(e.data), len(got))
		assert.Equal(t, string(e.data), string(got))
	}
}

func TestExtractPattern(t *testing.T) {
	t.Parallel()

	f := openFixture(t, sampleEntries())
	dst := t.TempDir()

	require.NoError(t, f.Extract(context.Background(), dst, ExtractOptions{Pattern: "data/xml/*.xml"}))

	_, err := os.Stat(filepath.Join(dst, "DATA", "XML", "UNITS.XML"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dst, "DATA", "ART"))
	require.ErrorIs(t, err, os.ErrNotExist)

	err = f.Extract(context.Background(), t.TempDir(), ExtractOptions{Pattern: "data/xml/*.xml", CaseSensitive: true})
	require.NoError(t, err)
}

func TestExtractLastDuplicateWins(t *testing.T) {
	t.Parallel()

	f := openFixture(t, []fixtureEntry{
		{path: `DATA\DUP.XML`, data: []byte("first")},
		{path: `DATA\DUP.XML`, data: []byte("second")},
	})
	dst := t.TempDir()

	require.NoError(t, f.Extract(context.Background(), dst, ExtractOptions{}))

	got, err := os.ReadFile(filepath.Join(dst, "DATA", "DUP.XML"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestExtractSelectedEntries(t *testing.T) {
	t.Parallel()

	f := openFixture(t, sampleEntries())
	entry, ok := f.FindEntry(`DATA\XML\UNITS.XML`)
	require.True(t, ok)

	dst := t.TempDir()
	require.NoError(t, f.Extract(context.Background(), dst, ExtractOptions{Entries: []DataEntry{entry}}))

	entries, err := os.ReadDir(filepath.Join(dst, "DATA", "XML"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "UNITS.XML", entries[0].Name())

	err = f.Extract(context.Background(), dst, ExtractOptions{Entries: []DataEntry{{FilePath: "X"}}})
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestExtractFileModes(t *testing.T) {
	t.Parallel()

	f := openFixture(t, []fixtureEntry{{path: "A.TXT", data: []byte("new")}})
	dst := t.TempDir()
	out := filepath.Join(dst, "A.TXT")

	require.NoError(t, os.WriteFile(out, []byte("previous content"), 0o600))
	err := f.Extract(context.Background(), dst, ExtractOptions{FileMode: ExtractFileModeCreateOnly})
	require.ErrorIs(t, err, os.ErrExist)

	require.NoError(t, f.Extract(context.Background(), dst, ExtractOptions{FileMode: ExtractFileModeOverwriteSmart}))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	require.NoError(t, os.WriteFile(out, []byte("previous content"), 0o600))
	require.NoError(t, f.Extract(context.Background(), dst, ExtractOptions{FileMode: ExtractFileModeTruncate}))
	got, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	err = f.Extract(context.Background(), dst, ExtractOptions{FileMode: "bogus"})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExtractRejectsTraversal(t *testing.T) {
	t.Parallel()

	f := openFixture(t, []fixtureEntry{{path: `..\..\EVIL.TXT`, data: []byte("x")}})
	err := f.Extract(context.Background(), t.TempDir(), ExtractOptions{})
	require.ErrorIs(t, err, ErrInvalidExtractPath)
}

func TestExtractSanitizeNames(t *testing.T) {
	t.Parallel()

	f := openFixture(t, []fixtureEntry{{path: `DATA\CON.XML`, data: []byte("x")}})
	dst := t.TempDir()

	require.NoError(t, f.Extract(context.Background(), dst, ExtractOptions{SanitizeNames: true}))
	_, err := os.Stat(filepath.Join(dst, "DATA", "_CON.XML"))
	require.NoError(t, err)
}

func TestNormalizeExtractEntryPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `DATA\XML\A.XML`, want: "DATA/XML/A.XML"},
		{in: `DATA\\.\A.XML`, want: "DATA/A.XML"},
		{in: `..\A.XML`, wantErr: true},
		{in: `\ROOT.XML`, wantErr: true},
		{in: "/root.xml", wantErr: true},
		{in: `C:\WINDOWS\X`, wantErr: true},
		{in: "C:X", wantErr: true},
		{in: "a\x00b", wantErr: true},
		{in: "   ", wantErr: true},
		{in: `.\.`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := normalizeExtractEntryPath(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidExtractPath)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureInsideRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, ensureInsideRoot(root, filepath.Join(root, "a", "b")))
	require.ErrorIs(t, ensureInsideRoot(root, filepath.Dir(root)), ErrExtractPathOutsideRoot)
	require.ErrorIs(t, ensureInsideRoot(root, filepath.Join(root, "..", "x")), ErrExtractPathOutsideRoot)
}
