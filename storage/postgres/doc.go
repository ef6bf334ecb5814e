// Package postgres persists users and refresh tokens in PostgreSQL via pgx.
//
// Store implements bankauth.CredentialStore and RefreshStore implements
// refresh.Store. Both accept any DB, so *pgxpool.Pool in production and a
// pgxmock pool in tests.
package postgres
