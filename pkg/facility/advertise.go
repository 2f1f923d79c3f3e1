// ABOUTME: mDNS service advertisement
// ABOUTME: Publishes one service instance on the local IPv4 interfaces
package facility

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// AdvertiseConfig describes the service to publish
type AdvertiseConfig struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	Text     []string
	Logger   *zap.Logger
}

// Advertiser answers mDNS queries for one service instance
type Advertiser struct {
	config AdvertiseConfig
	server *mdns.Server
	logger *zap.Logger
}

// Advertise starts answering queries for the configured service
func Advertise(config AdvertiseConfig) (*Advertiser, error) {
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", config.Port)
	}
	if config.Service == "" {
		return nil, errors.New("service type is required")
	}
	if config.Instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		config.Instance = hostname
	}
	if config.Domain == "" {
		config.Domain = "local."
	} else {
		config.Domain = trimDot(config.Domain) + "."
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	ips, err := getLocalIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		config.Instance,
		trimDot(config.Service),
		config.Domain,
		"",
		config.Port,
		ips,
		config.Text,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	config.Logger.Info("advertising mDNS service",
		zap.String("instance", config.Instance),
		zap.String("service", config.Service),
		zap.Int("port", config.Port),
		zap.Int("addresses", len(ips)))

	return &Advertiser{
		config: config,
		server: server,
		logger: config.Logger,
	}, nil
}

// Shutdown stops answering queries
func (a *Advertiser) Shutdown() error {
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	a.logger.Info("mDNS advertisement stopped", zap.String("instance", a.config.Instance))
	return err
}

// getLocalIPs returns the IPv4 addresses of up, non-loopback interfaces
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	if ips == nil {
		ips = []net.IP{}
	}
	return ips, nil
}
