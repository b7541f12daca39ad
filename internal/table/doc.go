// Package table provides a generic SQLite table whose columns are declared at
// runtime.
//
// A Table is built from an ordered Schema of field names and types. It creates
// its backing table on construction and exposes single-statement add, get,
// modify, delete, search and vacuum operations over Row values
// (map[string]any).
//
// Row keys arrive from untrusted input, so every operation checks them
// against the schema before any SQL text is assembled: Add requires the keys
// to match the schema exactly, Modify and the Query filters accept any subset.
// Identifiers are validated when the schema is declared and always quoted;
// values are always bound as parameters. Values are also checked against
// the declared field type, and JSON fields are encoded on write and decoded
// on read.
//
// All writes hold the table's write lock and all reads its read lock. There
// are no multi-statement transactions.
package table
