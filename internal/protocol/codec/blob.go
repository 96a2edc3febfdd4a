package codec

import (
	"chatcore/internal/crypto"
	"chatcore/internal/domain"
)

// NewEncryption returns fresh blob encryption parameters.
func NewEncryption() (domain.Encryption, error) {
	key, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return domain.Encryption{}, err
	}
	return domain.Encryption{Algorithm: domain.AlgorithmChaCha20Poly1305Nonce12Prefixed, Key: key}, nil
}

// SealBlob encrypts data with enc.
func SealBlob(data []byte, enc domain.Encryption) ([]byte, error) {
	if err := checkAlgorithm(enc); err != nil {
		return nil, err
	}
	return crypto.EncryptWithSymmetricKey(data, enc.Key)
}

// OpenBlob decrypts a blob sealed with enc.
func OpenBlob(blob []byte, enc domain.Encryption) ([]byte, error) {
	if err := checkAlgorithm(enc); err != nil {
		return nil, err
	}
	return crypto.DecryptWithSymmetricKey(blob, enc.Key)
}

// SealAttachment encrypts data under a fresh key and returns the attachment
// metadata to embed in a message along with the blob to upload.
func SealAttachment(name, mimeType string, data []byte) (domain.Attachment, []byte, error) {
	id, err := crypto.RandomID()
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	enc, err := NewEncryption()
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	blob, err := SealBlob(data, enc)
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	return domain.Attachment{ID: id, Name: name, MimeType: mimeType, Encryption: enc}, blob, nil
}

// SealThumbnail encrypts a preview image under a fresh key.
func SealThumbnail(mimeType string, width, height int, data []byte) (domain.Thumbnail, []byte, error) {
	if width <= 0 || height <= 0 {
		return domain.Thumbnail{}, nil, domain.Malformed("thumbnail: invalid size %dx%d", width, height)
	}
	id, err := crypto.RandomID()
	if err != nil {
		return domain.Thumbnail{}, nil, err
	}
	enc, err := NewEncryption()
	if err != nil {
		return domain.Thumbnail{}, nil, err
	}
	blob, err := SealBlob(data, enc)
	if err != nil {
		return domain.Thumbnail{}, nil, err
	}
	return domain.Thumbnail{ID: id, MimeType: mimeType, Width: width, Height: height, Encryption: enc}, blob, nil
}

func checkAlgorithm(enc domain.Encryption) error {
	if enc.Algorithm != domain.AlgorithmChaCha20Poly1305Nonce12Prefixed {
		return domain.Misconfigured("unsupported encryption algorithm %q", enc.Algorithm)
	}
	return nil
}
