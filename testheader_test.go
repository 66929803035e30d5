package breccia

import "fmt"

// TestHeader is a minimal Header used throughout the core package's tests:
// one magic byte and one header byte, giving an 8-byte frame once aligned.
type TestHeader struct {
	v byte
}

func (h TestHeader) Magic() []byte      { return []byte{0x00} }
func (h TestHeader) SerializedSize() int { return 1 }

func (h TestHeader) Serialize(dst []byte) {
	dst[0] = h.v
}

func DeserializeTestHeader(src []byte) (TestHeader, error) {
	if len(src) != 1 {
		return TestHeader{}, fmt.Errorf("testheader: want 1 byte, got %d", len(src))
	}

	return TestHeader{v: src[0]}, nil
}
