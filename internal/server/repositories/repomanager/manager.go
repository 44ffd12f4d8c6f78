// Package repomanager wires concrete repository implementations to a
// database handle and runs schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/mberzins/chatd/internal/dbx"
	"github.com/mberzins/chatd/internal/server/repositories/conversations"
	"github.com/mberzins/chatd/internal/server/repositories/messages"
	"github.com/mberzins/chatd/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	Messages(db dbx.DBTX) messages.Repository
}
