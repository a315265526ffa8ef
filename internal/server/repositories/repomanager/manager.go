package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cbtjournal/internal/dbx"
	"github.com/dmitrijs2005/cbtjournal/internal/server/repositories/entries"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entries(db dbx.DBTX) entries.Repository
}
