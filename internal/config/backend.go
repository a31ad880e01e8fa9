package config

// ConfigBackend is the platform store for non-secret keys: the `defaults`
// domain com.docmind.app on macOS, a JSON file elsewhere. A missing key
// reports ok=false with a nil error.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
