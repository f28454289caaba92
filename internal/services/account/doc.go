// Package account manages the local E2EE identity: key pair generation at
// account setup, passphrase-protected persistence, and publication of the
// public half to the record store.
//
// It enforces passphrase policy before any key material is written to disk.
package account
