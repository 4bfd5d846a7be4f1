package config

import (
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaneb/seaneb-auth/pkg/product"
	"github.com/seaneb/seaneb-auth/pkg/session"
)

func TestMakeValkeyOptions(t *testing.T) {
	embedded := func(v string) commoncfg.SourceRef {
		return commoncfg.SourceRef{Source: "embedded", Value: v}
	}
	missingFile := commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}}

	tests := []struct {
		name    string
		conf    ValKey
		wantErr string
	}{
		{
			name: "embedded credentials",
			conf: ValKey{Host: embedded("localhost:6379"), User: embedded("user"), Password: embedded("pass")},
		},
		{
			name:    "invalid host source",
			conf:    ValKey{Host: missingFile, User: embedded("user"), Password: embedded("pass")},
			wantErr: "loading valkey host",
		},
		{
			name:    "invalid user source",
			conf:    ValKey{Host: embedded("localhost:6379"), User: missingFile, Password: embedded("pass")},
			wantErr: "loading valkey username",
		},
		{
			name:    "invalid password source",
			conf:    ValKey{Host: embedded("localhost:6379"), User: embedded("user"), Password: missingFile},
			wantErr: "loading valkey password",
		},
		{
			name: "missing mTLS files",
			conf: ValKey{
				Host:     embedded("localhost:6379"),
				User:     embedded("user"),
				Password: embedded("pass"),
				SecretRef: commoncfg.SecretRef{
					Type: commoncfg.MTLSSecretType,
					MTLS: commoncfg.MTLS{
						Cert:    commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/cert.pem"}},
						CertKey: commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/key.pem"}},
					},
				},
			},
			wantErr: "loading valkey mTLS config from secret ref",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := MakeValkeyOptions(tt.conf)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, []string{"localhost:6379"}, opts.InitAddress)
			assert.Equal(t, "user", opts.Username)
			assert.Equal(t, "pass", opts.Password)
			assert.Nil(t, opts.TLSConfig)
		})
	}
}

func TestSession_TTLs(t *testing.T) {
	assert.Equal(t, session.DefaultTTLs(), Session{}.TTLs())

	ttls := Session{AccessTokenTTL: 5 * time.Minute, SessionTTL: time.Hour}.TTLs()
	assert.Equal(t, 5*time.Minute, ttls.AccessToken)
	assert.Equal(t, time.Hour, ttls.Session)
	assert.Equal(t, session.DefaultTTLs().CSRFToken, ttls.CSRFToken)
}

func TestProduct_ProductConfig(t *testing.T) {
	assert.Equal(t, product.Config{
		DefaultKey:   "property",
		DefaultName:  "Property",
		FallbackKeys: []string{"property", "seaneb"},
		LegacyKeys:   []string{"dummy pro", "dummy-pro", "dummy_pro"},
	}, Product{}.ProductConfig())

	cfg := Product{DefaultKey: "land", DefaultName: "Land", FallbackKeys: []string{"land"}, LegacyKeys: []string{"old"}}.ProductConfig()
	assert.Equal(t, "land", cfg.DefaultKey)
	assert.Equal(t, []string{"land"}, cfg.FallbackKeys)
	assert.Equal(t, []string{"old"}, cfg.LegacyKeys)
}
