// Package repository defines the data access interfaces for booksys.
//
// This package provides the repository abstraction layer for persisting and
// retrieving users, login sessions and books. The implementation lives in
// the sqlite subpackage.
//
// # Conventions
//
// Lookups return (nil, nil) when the entity does not exist; the service
// layer turns that into domain.ErrNotFound. Book operations always take the
// owner id so one user can never read or change another user's books.
//
// # SQLite Implementation
//
// Users and sessions live in tables created by versioned migrations
// (golang-migrate). Books are stored through the generic table wrapper in
// internal/table, which creates its own table from a field schema.
//
// # Testing
//
// The sqlite repository is tested against temporary database files.
package repository
