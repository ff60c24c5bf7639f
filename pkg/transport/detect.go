package transport

import (
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"go.bug.st/serial/enumerator"
)

var ErrNoPort = errors.New("no matching serial port found")

// usbHints are matched against the port name and USB product string of
// common ESP32 bridge chips.
var usbHints = []string{"cp210", "ch340", "usb", "serial", "uart"}

type PortInfo struct {
	Name    string
	Product string
	IsUSB   bool
	VID     string
	PID     string
}

func (p PortInfo) describe() string {
	return strings.ToLower(p.Name + " " + p.Product)
}

// ListPorts returns every serial port the OS reports.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:    d.Name,
			Product: d.Product,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
		})
	}
	return out, nil
}

// PickPort returns the first port that looks like a USB-serial bridge.
func PickPort(ports []PortInfo) (PortInfo, error) {
	for _, p := range ports {
		desc := p.describe()
		for _, h := range usbHints {
			if strings.Contains(desc, h) {
				return p, nil
			}
		}
	}
	return PortInfo{}, ErrNoPort
}

func DetectPort() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}

	p, err := PickPort(ports)
	if err != nil {
		for _, p := range ports {
			log.Info("Available port", "name", p.Name, "product", p.Product)
		}
		return "", err
	}

	log.Info("Found serial port", "name", p.Name, "product", p.Product)
	return p.Name, nil
}
