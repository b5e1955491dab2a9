package meg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
)

const (
	benchDefaultEntries    = 128
	benchLargeIndexEntries = 20000
)

var (
	// benchEntrySink prevents compiler elimination in benchmark loops.
	benchEntrySink int
)

// benchEntries returns count fixture entries with small payloads.
func benchEntries(count int) []fixtureEntry {
	entries := make([]fixtureEntry, count)
	for i := range entries {
		entries[i] = fixtureEntry{
			path: fmt.Sprintf(`DATA\XML\FILE_%05d.XML`, i),
			data: bytes.Repeat([]byte{byte(i)}, 64+i%512),
		}
	}

	return entries
}

func BenchmarkOpen(b *testing.B) {
	path := writeFixture(b, "bench.meg", buildV1Archive(b, benchEntries(benchDefaultEntries)))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f, err := Open(path)
		if err != nil {
			b.Fatal(err)
		}
		benchEntrySink += f.Archive.Len()
	}
}

func BenchmarkLoadLargeIndex(b *testing.B) {
	data := buildV1Archive(b, benchEntries(benchLargeIndexEntries))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		archive, err := Load(bytes.NewReader(data), int64(len(data)), ReaderOptions{})
		if err != nil {
			b.Fatal(err)
		}
		benchEntrySink += archive.Len()
	}
}

func BenchmarkBuildPlan(b *testing.B) {
	size := int64(1024)
	entries := make([]BuilderEntry, benchLargeIndexEntries)
	for i := range entries {
		entries[i] = BuilderEntry{
			Origin:   LocalOrigin{Path: "unused"},
			FilePath: fmt.Sprintf(`DATA\ART\TEXTURE_%05d.DDS`, i),
			Size:     &size,
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		plan, err := BuildPlan(entries, PlanOptions{})
		if err != nil {
			b.Fatal(err)
		}
		benchEntrySink += len(plan.Entries)
	}
}

func BenchmarkEntryStreamRead(b *testing.B) {
	path := writeFixture(b, "bench.meg", buildV1Archive(b, benchEntries(benchDefaultEntries)))
	f, err := Open(path)
	if err != nil {
		b.Fatal(err)
	}
	entries := f.Entries()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, err := f.OpenEntry(entries[i%len(entries)])
		if err != nil {
			b.Fatal(err)
		}

		n, err := io.Copy(io.Discard, s)
		if err != nil {
			b.Fatal(err)
		}
		benchEntrySink += int(n)
		_ = s.Close()
	}
}

func BenchmarkExtract(b *testing.B) {
	path := writeFixture(b, "bench.meg", buildV1Archive(b, benchEntries(benchDefaultEntries)))
	f, err := Open(path)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := f.Extract(context.Background(), b.TempDir(), ExtractOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
