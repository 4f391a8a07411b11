// SPDX-License-Identifier: MPL-2.0

// Package plugin defines the contract between the shell and its pluggable
// command providers, and the Registry that routes command names to them.
//
// A Plugin contributes commands. It may additionally implement any of the
// optional capability interfaces (InstanceProvider, Initializer, Finalizer);
// the Registry resolves those once, at registration time.
//
// The Registry is shared by every session of a process. Per-session state
// (buffers, script environments) reaches handlers through the Host carried by
// each Invocation, never through the plugin itself.
package plugin
