// SPDX-License-Identifier: MPL-2.0

// Package sshserver serves shell sessions over SSH using Wish. Every SSH
// session gets its own shell session: buffers and script environments are
// never shared between them, while the plugin registry is. Clients
// authenticate with a password that must be a token issued by the server.
package sshserver
