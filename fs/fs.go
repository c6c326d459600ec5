// Package appfs exposes assets embedded in the binary.
package appfs

import "embed"

//go:embed templates migrations common-passwords.txt
var FS embed.FS
