package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSN(t *testing.T) {
	cfg := &Config{
		Host:     "db",
		Port:     5433,
		User:     "seb",
		Password: "secret",
		Database: "glacier",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5433 user=seb password=secret dbname=glacier sslmode=disable", cfg.DSN())
}
