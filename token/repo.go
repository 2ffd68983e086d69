package token

// Repo is a durable string key/value store. It is the only place credentials live between runs.
type Repo interface {
	// Get returns ok=false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	// Delete removes the keys, ignoring any that are absent.
	Delete(keys ...string) error
}
