package codec

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// S2 compresses payloads with the s2 block format. It is stateless and safe
// for concurrent use.
type S2 struct{}

func (S2) Compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (S2) Decompress(src []byte) ([]byte, error) {
	out, err := s2.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("s2 decode: %w", err)
	}
	return out, nil
}
