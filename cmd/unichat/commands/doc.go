// Package commands defines the unichat CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init         Create the local identity and publish its public key
//   - fingerprint  Print the identity fingerprint
//   - publish      Re-publish the public key to the relay
//   - rooms        List rooms with redacted previews
//   - start        Establish an encrypted room with a peer
//   - send         Send one message to a room
//   - watch        Follow a room's history and live messages
//
// # Implementation
//
// The root command builds a dependency graph (identity store, relay clients,
// services) before any subcommand runs, so handlers share one app context.
// Message plaintext exists only inside the process; everything that leaves it
// goes through the session-key layer first.
package commands
