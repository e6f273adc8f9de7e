// Package internal holds low-level helpers with no alignment-domain
// knowledge: pooled byte buffers, string/bool hashing for the
// sharded concurrent maps keyed in tls and utils, logging setup,
// generic numeric helpers, and small filesystem utilities.
package internal
