// Package classify decides whether a packaged file is a binary object
// (executable, shared library, static archive) or a plain file. Build
// systems do not reliably encode this in file names, so classification is
// by content, with extension fast paths to avoid reading files whose kind
// is unambiguous.
//
// The rule is deterministic: known binary extensions are binary, known
// source/text/resource extensions are plain, otherwise the first bytes
// are sniffed for Mach-O (thin or fat, either byte order) or ar archive
// magic. Anything unrecognized is plain.
package classify

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Kind is the result of classifying one file.
type Kind int

const (
	// KindPlain is any file the merger reconciles byte-for-byte.
	KindPlain Kind = iota
	// KindBinary is any file the merger fuses per-architecture.
	KindBinary
)

func (k Kind) String() string {
	if k == KindBinary {
		return "binary"
	}
	return "plain"
}

// Extension fast paths, mirroring the artifact kinds a package step
// typically emits. They only skip content sniffing; unknown extensions
// always fall through to the magic check.
var binaryExts = map[string]bool{
	".a":     true,
	".dylib": true,
}

var plainExts = map[string]bool{
	".h": true, ".hpp": true, ".hxx": true,
	".c": true, ".cc": true, ".cxx": true, ".cpp": true,
	".m": true, ".mm": true,
	".txt": true, ".md": true, ".html": true,
	".cmake": true, ".pc": true, ".json": true, ".yaml": true, ".yml": true,
	".jpg": true, ".png": true,
}

// Magic prefixes for recognized binary formats.
var (
	machoMagic64   = []byte{0xfe, 0xed, 0xfa, 0xcf} // Mach-O 64-bit, big-endian
	machoCigam64   = []byte{0xcf, 0xfa, 0xed, 0xfe} // Mach-O 64-bit, little-endian
	machoMagic32   = []byte{0xfe, 0xed, 0xfa, 0xce} // Mach-O 32-bit, big-endian
	machoCigam32   = []byte{0xce, 0xfa, 0xed, 0xfe} // Mach-O 32-bit, little-endian
	machoFatMagic  = []byte{0xca, 0xfe, 0xba, 0xbe} // Mach-O universal
	arArchiveMagic = []byte("!<arch>\n")            // ar static archive
)

// File classifies the file at path.
func File(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if binaryExts[ext] {
		return KindBinary, nil
	}
	if plainExts[ext] {
		return KindPlain, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return KindPlain, err
	}
	defer f.Close()

	header := make([]byte, len(arArchiveMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return KindPlain, err
	}

	return Sniff(header[:n]), nil
}

// Sniff classifies raw leading bytes. Short inputs are plain.
func Sniff(header []byte) Kind {
	if len(header) >= len(arArchiveMagic) && bytes.HasPrefix(header, arArchiveMagic) {
		return KindBinary
	}
	if len(header) < 4 {
		return KindPlain
	}

	prefix := header[:4]
	switch {
	case bytes.Equal(prefix, machoMagic64),
		bytes.Equal(prefix, machoCigam64),
		bytes.Equal(prefix, machoMagic32),
		bytes.Equal(prefix, machoCigam32),
		bytes.Equal(prefix, machoFatMagic):
		return KindBinary
	}

	return KindPlain
}

// IsBinary is a convenience wrapper around File.
func IsBinary(path string) (bool, error) {
	kind, err := File(path)
	return kind == KindBinary, err
}
