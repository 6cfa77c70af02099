// SPDX-License-Identifier: MIT
package main

import "github.com/skaphos/reposync/cmd/reposync"

var execute = reposync.Execute

func main() {
	execute()
}
