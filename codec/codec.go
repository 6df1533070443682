// Package codec provides the compress-then-encrypt pipeline applied to cache
// payloads. Both stages are independently pluggable and exactly invertible;
// compression always precedes encryption so ciphertext never destroys
// compressibility.
package codec

import "errors"

// ErrDecrypt is returned when a payload cannot be authenticated or
// decrypted. Decryption fails closed: callers must treat this as a cache
// miss and never surface raw ciphertext.
var ErrDecrypt = errors.New("codec: decryption failed")

// Compressor is an invertible compression stage.
type Compressor interface {
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Encryptor is an invertible authenticated-encryption stage.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}
