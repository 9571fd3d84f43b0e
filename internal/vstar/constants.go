package vstar

// MarkerSize is the length of the prefix and suffix markers.
const MarkerSize = 32

// Prefix is the magic string every VStarCam firmware container starts with.
var Prefix = [MarkerSize]byte{
	'w', 'w', 'w', '.', 'o', 'b', 'j', 'e', 'c', 't', '-', 'c', 'a', 'm', 'e', 'r',
	'a', '.', 'c', 'o', 'm', '.', 'b', 'y', '.', 'h', 'o', 'n', 'g', 'z', 'x', '.',
}

// Suffix terminates the entry sequence. It is Prefix with its bytes reversed.
var Suffix = reverse(Prefix)

const (
	// FieldSize is the capacity of the NUL-padded path and filename fields.
	FieldSize = 64

	// HeaderSize is the size of an encoded entry header:
	// path(64) + filename(64) + filesize(4) + version(4) + factory(4).
	HeaderSize = 2*FieldSize + 4 + 4 + 4

	// DefaultVersion is the version tag written when nothing else is known.
	// Every firmware seen so far carries this value.
	DefaultVersion int32 = 808791301

	// DefaultFactory is the factory flag written when nothing else is known.
	DefaultFactory uint32 = 0
)

func reverse(b [MarkerSize]byte) [MarkerSize]byte {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

// IsPrefix reports whether b is exactly the container prefix.
func IsPrefix(b []byte) bool {
	return len(b) == MarkerSize && [MarkerSize]byte(b) == Prefix
}

// IsSuffix reports whether b is exactly the container suffix.
// The decoder must ask this before treating b as the start of a header.
func IsSuffix(b []byte) bool {
	return len(b) == MarkerSize && [MarkerSize]byte(b) == Suffix
}
