// Package stream provides a latest-value broadcaster.
//
// Subscribers receive the current value immediately on subscribe (if one has
// been published) and every later value. Delivery conflates: a slow
// subscriber only ever sees the newest value, publishers never block.
package stream
