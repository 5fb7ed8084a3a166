// Package schema provides the entity row types shared between the remote
// relational service and the local cache stores.
//
// Each row type carries the exact wire field names used by the remote tables
// (lowercase, no separators, matching the hosted service's column names) and a
// stable opaque string ID. Log-type entities additionally define a natural key
// used for duplicate suppression on optimistic local inserts.
package schema
