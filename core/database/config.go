// Package database opens the PostgreSQL pool and applies schema migrations
// for the postgres storage driver.
package database

import (
	"net/url"

	coreconfig "github.com/m3rciful/kinobot/core/config"
)

// Config is the database section of the bot configuration.
type Config = coreconfig.DatabaseConfig

// URL renders cfg as a postgres:// URL with credentials escaped. Both lib/pq
// and golang-migrate accept this form.
func URL(cfg Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}
