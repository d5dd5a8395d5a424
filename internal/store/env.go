package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// LookupFunc returns the first non-empty value among keys.
type LookupFunc func(keys ...string) (string, bool)

// LookupEnv is the LookupFunc backed by the process environment.
func LookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// OpenSlotStore selects the slot backend: Postgres when PGSTORE_DSN is set,
// object storage when OBJECTSTORE_ENDPOINT is set, otherwise <authDir>/slots.json.
// The returned close function is never nil.
func OpenSlotStore(ctx context.Context, authDir string, lookup LookupFunc) (SlotStore, func() error, error) {
	if lookup == nil {
		lookup = LookupEnv
	}
	noop := func() error { return nil }

	if dsn, ok := lookup("PGSTORE_DSN", "pgstore_dsn"); ok {
		schema, _ := lookup("PGSTORE_SCHEMA", "pgstore_schema")
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		pg, err := NewPostgresSlotStore(connectCtx, PostgresStoreConfig{DSN: dsn, Schema: schema})
		if err != nil {
			return nil, noop, err
		}
		if err = pg.EnsureSchema(connectCtx); err != nil {
			_ = pg.Close()
			return nil, noop, err
		}
		log.Info("postgres-backed credential slot enabled")
		return pg, pg.Close, nil
	}

	if endpoint, ok := lookup("OBJECTSTORE_ENDPOINT", "objectstore_endpoint"); ok {
		resolved, useSSL, err := ParseObjectEndpoint(endpoint)
		if err != nil {
			return nil, noop, err
		}
		cfg := ObjectStoreConfig{Endpoint: resolved, UseSSL: useSSL, PathStyle: true}
		cfg.Bucket, _ = lookup("OBJECTSTORE_BUCKET", "objectstore_bucket")
		cfg.AccessKey, _ = lookup("OBJECTSTORE_ACCESS_KEY", "objectstore_access_key")
		cfg.SecretKey, _ = lookup("OBJECTSTORE_SECRET_KEY", "objectstore_secret_key")
		obj, err := NewObjectSlotStore(cfg)
		if err != nil {
			return nil, noop, err
		}
		log.Infof("object storage credential slot enabled, bucket: %s", cfg.Bucket)
		return obj, noop, nil
	}

	if strings.TrimSpace(authDir) == "" {
		return nil, noop, fmt.Errorf("slot store: auth directory is required")
	}
	fileStore := NewFileSlotStore(authDir)
	log.Debugf("file-backed credential slot: %s", fileStore.Path())
	return fileStore, noop, nil
}
