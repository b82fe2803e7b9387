// Package instance names the running process for lease ownership and logs.
package instance

import (
	"os"
	"strconv"
	"sync"
)

const envInstanceID = "STOREFRONT_INSTANCE_ID"

var id = sync.OnceValue(resolve)

// GetID returns STOREFRONT_INSTANCE_ID when set, otherwise hostname-pid.
// The value is fixed for the life of the process.
func GetID() string {
	return id()
}

func resolve() string {
	if v := os.Getenv(envInstanceID); v != "" {
		return v
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}
