// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by tests, including a fake clock for
// time-dependent code.
package testutil
