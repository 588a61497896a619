// Package secrets overlays credentials from HashiCorp Vault onto the loaded config.
package secrets

import (
	"context"
	"fmt"

	"chainpay-reconciler/config"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog"
)

// Keys read from the KV v2 secret.
const (
	KeyDatabasePassword = "database_password"
	KeyJWTSecret        = "jwt_secret"
	KeySignerAPIKey     = "signer_api_key"
)

// VaultLoader reads one KV v2 secret and overlays it on a config.
type VaultLoader struct {
	client *vault.Client
	mount  string
	path   string
	log    zerolog.Logger
}

// NewVaultLoader builds a Vault client from cfg.
func NewVaultLoader(cfg config.VaultConfig, log zerolog.Logger) (*VaultLoader, error) {
	vcfg := vault.DefaultConfig()
	if cfg.Address != "" {
		vcfg.Address = cfg.Address
	}

	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &VaultLoader{
		client: client,
		mount:  cfg.Mount,
		path:   cfg.Path,
		log:    log,
	}, nil
}

// Apply overwrites cfg fields with any non-empty values found in the secret.
func (l *VaultLoader) Apply(ctx context.Context, cfg *config.Config) error {
	secret, err := l.client.KVv2(l.mount).Get(ctx, l.path)
	if err != nil {
		return fmt.Errorf("reading vault secret %s/%s: %w", l.mount, l.path, err)
	}

	applied := 0
	overlay := func(key string, dst *string) {
		v, ok := secret.Data[key].(string)
		if !ok || v == "" {
			return
		}
		*dst = v
		applied++
	}
	overlay(KeyDatabasePassword, &cfg.Database.Password)
	overlay(KeyJWTSecret, &cfg.JWT.Secret)
	overlay(KeySignerAPIKey, &cfg.Signer.APIKey)

	version := 0
	if secret.VersionMetadata != nil {
		version = secret.VersionMetadata.Version
	}
	l.log.Info().
		Str("mount", l.mount).
		Str("path", l.path).
		Int("version", version).
		Int("keys_applied", applied).
		Msg("secrets loaded from vault")

	return nil
}
