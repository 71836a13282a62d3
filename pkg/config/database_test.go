package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoresRequiresBothURLs(t *testing.T) {
	ctx := context.Background()

	_, err := OpenStores(ctx, &Config{MongoURI: "mongodb://localhost"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_CONN_STR")

	_, err = OpenStores(ctx, &Config{PostgresConnStr: "host=localhost"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestConnectFailuresReturnNoHandle(t *testing.T) {
	ctx := context.Background()

	// nothing listens on port 1
	client, err := connectMongo(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200")
	assert.Error(t, err)
	assert.Nil(t, client)

	db, err := connectPostgres(ctx, "host=127.0.0.1 port=1 user=stackit dbname=stackit sslmode=disable connect_timeout=1")
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestCloseToleratesPartialStores(t *testing.T) {
	assert.NotPanics(t, func() { (&Stores{}).Close() })
}
