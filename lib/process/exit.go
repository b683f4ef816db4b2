// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the standard undofs binary entrypoint error
// handler.
package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors returned from run(), before any structured logger
// has been set up.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
