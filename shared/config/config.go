package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

const (
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Storage         string        `yaml:"storage" validate:"required,oneof=postgres mongo"`
	FeedPageSize    int           `yaml:"feed_page_size" validate:"required,min=1"`
	UsersPageSize   int           `yaml:"users_page_size" validate:"required,min=1"`
	MaxPageSize     int           `yaml:"max_page_size" validate:"required,gtefield=FeedPageSize"`
	QueryTimeout    time.Duration `yaml:"query_timeout"` // seconds, 10 if unset
	JwtTTL          time.Duration `yaml:"jwt_ttl"`       // seconds, lifetime of tokens minted by threadsctl
	LogLevel        string        `yaml:"log_level"`
	LogJSON         bool          `yaml:"log_json"`
	HttpPort        int           `yaml:"http_port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	Https           bool          `yaml:"https"`            // served behind TLS, enables HSTS
	InvalidateTopic string        `yaml:"invalidate_topic"` // redis channel, invalidations are only logged if empty
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type Mongo struct {
	Uri      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Private struct {
	Pg     Pg     `yaml:"pg"`
	Mongo  Mongo  `yaml:"mongo"`
	Redis  Redis  `yaml:"redis"`
	JwtKey string `yaml:"jwt_key" validate:"required"`
}

func (s *Config) JwtKey() string {
	return s.Private.JwtKey
}

func (s *Config) JwtTTL() time.Duration {
	return s.Public.JwtTTL * time.Second
}

func (s *Config) QueryTimeout() time.Duration {
	if s.Public.QueryTimeout <= 0 {
		return 10 * time.Second
	}
	return s.Public.QueryTimeout * time.Second
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)

	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

// environment wins over yaml for secrets and endpoints
func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"THREADS_PG_PASSWORD": &cfg.Private.Pg.Password,
		"THREADS_JWT_KEY":     &cfg.Private.JwtKey,
		"THREADS_MONGO_URI":   &cfg.Private.Mongo.Uri,
		"THREADS_REDIS_ADDR":  &cfg.Private.Redis.Addr,
	}
	for env, field := range overrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*field = v
		}
	}
}

func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return err
	}
	switch cfg.Public.Storage {
	case StoragePostgres:
		if cfg.Private.Pg.Host == "" || cfg.Private.Pg.Dbname == "" {
			return fmt.Errorf("pg host and dbname are required for %s storage", StoragePostgres)
		}
	case StorageMongo:
		if cfg.Private.Mongo.Uri == "" || cfg.Private.Mongo.Database == "" {
			return fmt.Errorf("mongo uri and database are required for %s storage", StorageMongo)
		}
	}
	return nil
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		panic("invalid config: " + err.Error())
	}
	return cfg
}
