// Copyright ©2026 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import "github.com/curioloop/nlsq/cmd/nlsq-demo/cmd"

func main() {
	cmd.Execute()
}
