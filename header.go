package breccia

import "fmt"

// Header is implemented by caller-supplied header types stored in the
// frame at the start of a Breccia file.
//
// Magic and SerializedSize describe the schema, not a particular instance:
// they must return the same value for every value of the implementing
// type, including the zero value, since Breccia calls them on a zero H to
// learn the frame layout before a header has been read or written.
type Header interface {
	// Magic returns the fixed byte sequence identifying this schema.
	// Recommended shape: a leading 0x00 byte, identifying text, and
	// several random high-bit bytes for uniqueness. An empty slice is
	// legal (see NullHeader).
	Magic() []byte

	// SerializedSize returns the fixed encoded size of the header, not
	// including the magic bytes. Zero is legal.
	SerializedSize() int

	// Serialize encodes the header into dst, which has length exactly
	// SerializedSize().
	Serialize(dst []byte)
}

// Deserializer constructs a header value of type H from its serialized
// form (a slice of length H's SerializedSize()). Breccia has no way to
// construct an H on its own, so callers supply this factory to Open and
// Create.
type Deserializer[H Header] func(src []byte) (H, error)

// FrameSize returns the total size in bytes of the header frame: magic,
// serialized header, and zero padding up to the next 8-byte boundary.
func FrameSize(h Header) int {
	return alignUp8(len(h.Magic()) + h.SerializedSize())
}

func alignUp8(n int) int {
	return (n + 7) &^ 7
}

func wrapHeaderDeserializeErr(cause error) error {
	return fmt.Errorf("%w: %w", ErrHeaderDeserialize, cause)
}

// NullHeader is the legal "no header" schema: empty magic, zero size. Use
// it for stores that need no caller metadata beyond the blobs themselves.
type NullHeader struct{}

// Magic implements Header.
func (NullHeader) Magic() []byte { return nil }

// SerializedSize implements Header.
func (NullHeader) SerializedSize() int { return 0 }

// Serialize implements Header.
func (NullHeader) Serialize(_ []byte) {}

// DeserializeNullHeader is the Deserializer for NullHeader.
func DeserializeNullHeader(_ []byte) (NullHeader, error) {
	return NullHeader{}, nil
}
