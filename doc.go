// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/meg

/*
Package meg provides read, extract, pack, and edit operations for Petroglyph
MEG (Mega File) archives. Reading parses only metadata; entry data is served
by bounded streams that open their own file handle, so archives are never
loaded into memory.

Layout notes:
  - all integers are little-endian;
  - V1 metadata is a header with two equal u32 counts, a name table of
    u16-length-prefixed ASCII paths, and a file table of 20-byte records;
  - file records are sorted by CRC32 of the stored path, duplicates allowed;
  - V2 and V3 archives are identified but their metadata is not parsed.

# Reading

Open a MEG and read entries:

	f, err := meg.Open("config.meg")
	if err != nil {
	    return err
	}
	for _, e := range f.Entries() {
	    data, err := f.ReadEntry(e)
	    if err != nil {
	        return err
	    }
	    _ = data
	}

Find entries by exact stored path or by glob:

	entry, ok := f.FindEntry(`DATA\XML\GAMEOBJECTFILES.XML`)
	matches, err := f.Archive.FindAllEntries("data/xml/*.xml", true)

Only identify a stream:

	ident, err := meg.Identify(rs)
	if err != nil {
	    return err
	}
	fmt.Println(ident.Version, ident.Encrypted)

# Packing

Plan and write a V1 archive:

	src, _ := meg.NewLocalOrigin("mod/data/xml/units.xml")
	res, err := meg.Pack(ctx, "mod.meg", []meg.BuilderEntry{
	    {Origin: src, FilePath: `DATA\XML\UNITS.XML`},
	}, meg.PlanOptions{}, meg.WriteOptions{})

Entries of an opened archive can be repacked without reading them first:

	origin, _ := meg.NewEntryOrigin(f, entry)
	entries = append(entries, meg.BuilderEntry{Origin: origin, FilePath: entry.FilePath})

# Editing

Stage changes and commit them in one rewrite:

	ed, err := meg.OpenEditor("mod.meg", meg.EditOptions{BackupKeep: 1})
	if err != nil {
	    return err
	}
	_ = ed.Replace(meg.BuilderEntry{Origin: src, FilePath: "data/xml/units.xml"})
	_ = ed.DeleteMatching("data/art/**")
	res, err := ed.Commit(ctx)

# Extracting

	err := f.Extract(ctx, "out", meg.ExtractOptions{
	    Pattern:    "data/xml/**",
	    MaxWorkers: 4,
	})

# Logging

Every options struct accepts a logrus.FieldLogger. Nil means silent.
*/
package meg
