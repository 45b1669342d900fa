// Package core holds the types shared across the backend: the chat message
// sum type, the opaque caller identity, and the normalized search result
// projection.
//
// core has no dependencies on the stateful packages; everything else
// imports it.
package core
