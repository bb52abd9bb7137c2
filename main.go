// SPDX-License-Identifier: MPL-2.0

package main

import cmd "matrun-cli/cmd/matrun"

func main() {
	cmd.Execute()
}
