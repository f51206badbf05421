// Package dbadmin drives pg_dump and psql for full database export and
// restore: timestamped dump files per database, an encryption key copy,
// and a manifest tying an export set together.
package dbadmin
