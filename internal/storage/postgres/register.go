package postgres

import "datapulse/internal/storage"

func init() {
	// registers the postgres backend factory
	storage.Register("postgres", New)
}
