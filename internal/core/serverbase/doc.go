// SPDX-License-Identifier: MPL-2.0

// Package serverbase holds the lifecycle state machine shared by long-running
// listeners: created, starting, running, stopping, then stopped or failed.
// A server built on Base is single-use.
package serverbase
