package config

type StoreKind string

const (
	StoreFile   StoreKind = "file"
	StoreRedis  StoreKind = "redis"
	StoreMemory StoreKind = "memory"
)

type StoreConfig interface {
	GetStoreKind() StoreKind
	GetTokenFile() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Store struct {
	Kind          string `env:"TOKEN_STORE" env-default:"file"`
	TokenFile     string `env:"TOKEN_FILE" env-default:".medassist-session.json"`
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" env-default:"medassist:"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreKind() StoreKind {
	switch StoreKind(s.Kind) {
	case StoreRedis, StoreMemory:
		return StoreKind(s.Kind)
	default:
		return StoreFile
	}
}

func (s Store) GetTokenFile() string {
	return orDefault(s.TokenFile, ".medassist-session.json")
}

func (s Store) GetRedisAddr() string {
	return orDefault(s.RedisAddr, "localhost:6379")
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisPrefix() string {
	return orDefault(s.RedisPrefix, "medassist:")
}
