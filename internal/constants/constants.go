// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// AppName prefixes metric names and identifies the binary.
const AppName = "hydromonitor"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH
