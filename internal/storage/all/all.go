// Package all registers every storage backend. Commands blank-import it so a
// single import makes all kinds available to storage.New.
package all

import (
	_ "datapulse/internal/storage/memory"
	_ "datapulse/internal/storage/mssql"
	_ "datapulse/internal/storage/postgres"
	_ "datapulse/internal/storage/sqlite"
)
