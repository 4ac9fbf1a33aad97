package web

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/hashicorp/mdns"

	appLog "github.com/MePride/pin/internal/log"
)

// serviceType is the mDNS service the device announces so companion apps
// can find it without configuration.
const serviceType = "_pin._tcp"

// Announce publishes the API endpoint over mDNS. The returned shutdown
// function stops the responder; it is safe to call once.
func Announce(listen string) (func(), error) {
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return nil, fmt.Errorf("announce: bad listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("announce: bad port %q: %w", portStr, err)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "pin"
	}

	service, err := mdns.NewMDNSService(
		host,
		serviceType,
		"", // default ".local" domain
		"", // default OS hostname
		port,
		nil, // auto-detect IPs
		[]string{"pin e-paper display"},
	)
	if err != nil {
		return nil, fmt.Errorf("announce: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("announce: %w", err)
	}
	appLog.Info("mDNS announcement started", "service", serviceType, "port", port)
	return func() {
		if err := server.Shutdown(); err != nil {
			appLog.Error("mDNS shutdown failed", err)
		}
	}, nil
}
