package database

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-jury-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:           "db.internal",
		Port:           5433,
		User:           "jury",
		Password:       "p@ss word",
		Name:           "defense_jury",
		SSLMode:        "require",
		ConnectTimeout: 3 * time.Second,
		AppName:        "defense-jury-api",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/defense_jury", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "3", u.Query().Get("connect_timeout"))
	assert.Equal(t, "defense-jury-api", u.Query().Get("application_name"))
}

func TestDSNOmitsOptionalParameters(t *testing.T) {
	u, err := url.Parse(DSN(config.DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "db", SSLMode: "disable"}))
	require.NoError(t, err)
	assert.False(t, u.Query().Has("application_name"))
	assert.False(t, u.Query().Has("connect_timeout"))
}
