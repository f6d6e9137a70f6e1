package odrive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

// USB identifiers of ODrive devices.
const (
	VendorID  = "1209"
	ProductID = "0D32"
)

// PortInfo describes a serial port backed by an ODrive.
type PortInfo struct {
	Name         string
	SerialNumber string
	Product      string
}

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// ListPorts returns all serial ports that belong to an ODrive.
func ListPorts() ([]PortInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}

	var found []PortInfo
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if !strings.EqualFold(p.VID, VendorID) || !strings.EqualFold(p.PID, ProductID) {
			continue
		}
		found = append(found, PortInfo{
			Name:         p.Name,
			SerialNumber: strings.ToUpper(p.SerialNumber),
			Product:      p.Product,
		})
	}
	return found, nil
}

// Find waits until an ODrive with the given serial number shows up, polling
// every poll interval until ctx is done.
func Find(ctx context.Context, serial string, poll time.Duration) (PortInfo, error) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		ports, err := ListPorts()
		if err != nil {
			return PortInfo{}, err
		}
		for _, p := range ports {
			if strings.EqualFold(p.SerialNumber, serial) {
				return p, nil
			}
		}

		select {
		case <-ctx.Done():
			return PortInfo{}, fmt.Errorf("%w: serial %s: %v", ErrNotFound, serial, ctx.Err())
		case <-ticker.C:
		}
	}
}
