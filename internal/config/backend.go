package config

// ConfigBackend persists settings outside the environment: UserDefaults on
// macOS, a JSON file elsewhere. Lookup returns whatever type the store holds
// (string, int, float64 or bool); the key table coerces it.
type ConfigBackend interface {
	Lookup(key string) (val any, ok bool, err error)
	Store(key string, val any) error
	Remove(key string) error
}
