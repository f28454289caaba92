// Package recordstore provides the domain.RecordStore adapters: an
// in-memory store for tests and the development server, a Postgres store
// for a self-hosted backend, and an HTTP client for talking to relayd.
//
// All adapters deal in opaque rows; nothing here inspects message content.
package recordstore
