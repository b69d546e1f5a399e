// Package encryption seals individual values and record fields into
// self-describing envelopes stored in ordinary JSON/text columns.
//
// An envelope carries the hex ciphertext and tag ("ciphertext:tag"), the IV,
// the key id and algorithm used, a timestamp, and optional additional data
// bound to the tag. Keys are derived once at startup into a Keyring and the
// Service is injected wherever encryption is needed.
package encryption
