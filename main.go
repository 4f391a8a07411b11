// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/clishell/clishell/cmd/clishell"

func main() {
	cmd.Execute()
}
