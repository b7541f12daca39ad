// Package service implements business logic for booksys.
//
// AccountService registers users, checks passwords and manages login
// sessions. BookService performs owner-scoped book CRUD, batch modify and
// delete, and catalog import/export through the codec package.
//
// Mutations publish events on an EventBus; the hub package fans them out to
// the owner's connected event streams.
package service
