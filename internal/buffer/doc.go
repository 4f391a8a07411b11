// SPDX-License-Identifier: MPL-2.0

// Package buffer holds the named output buffers of a shell session and the
// sinks that route command output into them.
//
// A capture accumulates text in a pending area; the buffer's readable content
// is only replaced when the capture ends, so a reader always sees the full
// text of the most recent completed capture.
package buffer
