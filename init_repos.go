package main

import (
	"database/sql"

	"github.com/akinalp/pulse/repository"
)

// Repositories holds the SQLite repositories. They share one *sql.DB pool.
type Repositories struct {
	User    repository.UserRepository
	Post    repository.PostRepository
	Comment repository.CommentRepository
}

func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		User:    repository.NewSQLiteUserRepo(conn),
		Post:    repository.NewSQLitePostRepo(conn),
		Comment: repository.NewSQLiteCommentRepo(conn),
	}
}
