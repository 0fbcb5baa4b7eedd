// Package repository is the storage layer. Each aggregate has an interface
// here and a SQLite implementation in sqlite_*.go; services depend on the
// interfaces only.
//
// Constructors take a database.TxQuerier, so a service can build
// transaction-bound repositories inside database.WithTx.
package repository

import (
	"context"

	"github.com/akinalp/pulse/models"
)

// UserRepository stores identities. Email and username are unique
// (case-insensitive); violating either yields pkg.ErrAlreadyExists.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	SetOnline(ctx context.Context, id string, online bool) error
}
