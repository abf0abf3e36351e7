package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/clinic-dashboard/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "clinic", Password: "p@ss word's", Name: "audit"})
	assert.Equal(t, `host=db port=5432 user=clinic dbname=audit application_name=clinic-dashboard connect_timeout=5 password='p@ss word\'s' sslmode=disable`, dsn)

	dsn = DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "clinic", Name: "audit", SSLMode: "require"})
	assert.Equal(t, `host=db port=5433 user=clinic dbname=audit application_name=clinic-dashboard connect_timeout=5 sslmode=require`, dsn)
}
