// Package storage keeps an optional journal of delivery attempts.
//
// The journal is write-mostly: the app records every post.delivered and
// delivery.failed event, and `kolwatch verify` reads back the latest
// entries. It is never consulted for de-duplication.
package storage
