// Package audio moves samples between sound devices, WAV files and the
// detector, and shapes the monitor audio around the receiver passband.
package audio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
)

type Kind int

const (
	InOut Kind = iota
	In
	Out
)

// ListDevices returns the names of the devices of the given kind. With
// InOut every device is listed with its channel counts.
func ListDevices(kind Kind) ([]string, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var list []string

	for _, d := range devices {
		v := d.Name

		switch kind {
		case InOut:
			if d.MaxInputChannels > 0 {
				v += fmt.Sprintf(" (in:%v)", d.MaxInputChannels)
			}
			if d.MaxOutputChannels > 0 {
				v += fmt.Sprintf(" (out:%v)", d.MaxOutputChannels)
			}

		case In:
			if d.MaxInputChannels == 0 {
				continue
			}

		case Out:
			if d.MaxOutputChannels == 0 {
				continue
			}
		}

		list = append(list, v)
	}

	return list, nil
}

// findDevice looks a device up by 1-based index or by name prefix.
func findDevice(dev string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	if i, err := strconv.Atoi(dev); err == nil && i > 0 && i <= len(devices) {
		return devices[i-1], nil
	}

	for _, d := range devices {
		if strings.HasPrefix(d.Name, dev) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("device not found: %s", dev)
}

// DefaultDevices returns the names of the default input and output devices.
// Either is empty when the host has none.
func DefaultDevices() (in, out string) {
	if d, err := portaudio.DefaultInputDevice(); err == nil && d != nil {
		in = d.Name
	}
	if d, err := portaudio.DefaultOutputDevice(); err == nil && d != nil {
		out = d.Name
	}
	return in, out
}
