package interfaces

// LocalStorage is the per-device key-value store. Values are either plain
// strings or binary blobs; implementations namespace keys as "prefix_key".
type LocalStorage interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
	GetBinary(key string) ([]byte, bool, error)
	SetBinary(key string, value []byte) error
	Delete(keys ...string) error
}
