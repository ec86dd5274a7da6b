package version

// version is overridden at build time:
//
//	go build -ldflags "-X github.com/cbodonnell/noughts/pkg/version.version=v1.2.3"
var version = "dev"

func Get() string {
	return version
}
