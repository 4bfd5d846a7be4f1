// Package config defines the necessary types to configure the client.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

type StorageType string

const (
	StorageMemory StorageType = "memory"
	StorageFile   StorageType = "file"
	StorageValkey StorageType = "valkey"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	Backend Backend `yaml:"backend"`
	Session Session `yaml:"session"`
	Product Product `yaml:"product"`
	Storage Storage `yaml:"storage"`
	Keeper  Keeper  `yaml:"keeper"`
}

type Backend struct {
	BaseURL       string        `yaml:"baseURL" default:"http://localhost:5000/api"`
	Timeout       time.Duration `yaml:"timeout" default:"30s"`
	PublicTimeout time.Duration `yaml:"publicTimeout" default:"5s"`
}

type Session struct {
	AccessTokenTTL  time.Duration `yaml:"accessTokenTTL" default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTTL" default:"720h"`
	CSRFTokenTTL    time.Duration `yaml:"csrfTokenTTL" default:"6h"`
	SessionTTL      time.Duration `yaml:"sessionTTL" default:"6h"`
	// RefreshMargin refreshes an access token this long before it expires.
	// Zero only refreshes after a 401.
	RefreshMargin time.Duration `yaml:"refreshMargin" default:"1m"`
}

type Product struct {
	DefaultKey   string   `yaml:"defaultKey" default:"property"`
	DefaultName  string   `yaml:"defaultName" default:"Property"`
	FallbackKeys []string `yaml:"fallbackKeys"`
	LegacyKeys   []string `yaml:"legacyKeys"`
}

type Storage struct {
	Type StorageType `yaml:"type" default:"file"`
	// Path is the cookie file of the file storage.
	Path string `yaml:"path"`
	// LocalPath is the file mirroring browser local storage. Empty keeps it in memory.
	LocalPath string `yaml:"localPath"`
	ValKey    ValKey `yaml:"valkey"`
}

type ValKey struct {
	Host      commoncfg.SourceRef `yaml:"host"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
	Prefix    string              `yaml:"prefix" default:"seaneb-auth"`
}

type Keeper struct {
	Interval time.Duration `yaml:"interval" default:"1m"`
}

// TTLs converts the session section. Unset durations keep their defaults.
func (s Session) TTLs() session.TTLs {
	ttls := session.DefaultTTLs()
	if s.AccessTokenTTL > 0 {
		ttls.AccessToken = s.AccessTokenTTL
	}
	if s.RefreshTokenTTL > 0 {
		ttls.RefreshToken = s.RefreshTokenTTL
	}
	if s.CSRFTokenTTL > 0 {
		ttls.CSRFToken = s.CSRFTokenTTL
	}
	if s.SessionTTL > 0 {
		ttls.Session = s.SessionTTL
	}

	return ttls
}

// ProductConfig converts the product section. Without configured fallbacks the
// default key and "seaneb" are tried.
func (p Product) ProductConfig() product.Config {
	cfg := product.Config{
		DefaultKey:   p.DefaultKey,
		DefaultName:  p.DefaultName,
		FallbackKeys: p.FallbackKeys,
		LegacyKeys:   p.LegacyKeys,
	}
	if cfg.DefaultKey == "" {
		cfg.DefaultKey = "property"
	}
	if cfg.DefaultName == "" {
		cfg.DefaultName = "Property"
	}
	if len(cfg.FallbackKeys) == 0 {
		cfg.FallbackKeys = []string{cfg.DefaultKey, "seaneb"}
	}
	if len(cfg.LegacyKeys) == 0 {
		cfg.LegacyKeys = []string{"dummy pro", "dummy-pro", "dummy_pro"}
	}

	return cfg
}
