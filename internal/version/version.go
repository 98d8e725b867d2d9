package version

import (
	"fmt"
	"runtime"
)

var Version = "dev"

// UserAgent is sent with every HTTP request and websocket handshake.
func UserAgent() string {
	return "scrs/" + Version
}

// Details describes the build for `scrs version --verbose`.
func Details() string {
	return fmt.Sprintf("scrs %s (%s, %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
