package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const DEV_ENV = "dev"
const PRO_ENV = "pro"

type Config struct {
	Env           string `env:"ENV,default=pro"`
	AddressListen string `env:"ADDRESS_LISTEN"`
	DBDriver      string `env:"DB_DRIVER,default=sqlite"`
	DBURL         string `env:"DB_URL"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
	IndexLimit    int    `env:"INDEX_LIMIT,default=5"`
	FixturesPath  string `env:"FIXTURES_PATH"`
	WhitelistHost string `env:"WHITELIST_HOST"`
	CertCacheDir  string `env:"CERT_CACHE_DIR,default=/var/www/.cache"`
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	var c Config
	if _, err := env.UnmarshalFromEnviron(&c); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	if c.Env == DEV_ENV && c.AddressListen == "" {
		c.AddressListen = ":8080"
	}
	return c, nil
}

// loadDotEnv sets variables from path. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error loading %s: %w", path, err)
}

func (c Config) validate() error {
	if c.Env != DEV_ENV && c.Env != PRO_ENV {
		return fmt.Errorf("unknown ENV %q", c.Env)
	}
	if c.IndexLimit < 0 {
		return errors.New("INDEX_LIMIT must not be negative")
	}
	return nil
}
