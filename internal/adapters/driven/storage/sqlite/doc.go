// Package sqlite implements the filing metadata store on SQLite using
// the pure-Go modernc.org driver. The schema is managed by embedded
// versioned migrations.
package sqlite
