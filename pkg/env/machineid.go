package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves an ID identifying the machine, scoped to this
// application so the raw machine ID is never published.
// It falls back to the hostname.
func MachineID() string {
	id, err := machineid.ProtectedID("leddar")
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "leddar"
}
