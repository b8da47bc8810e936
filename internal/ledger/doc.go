// Package ledger is the durable store for enrollments, payments and certificates. Uniqueness
// rules live in the schema (unique and partial unique indexes) so concurrent writers are
// serialized by the database, and status changes are compare-and-set updates.
//
// Repositories return raw gorm errors; callers translate them into typed pipeline errors.
package ledger
