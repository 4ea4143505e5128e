// This package assumes the process talks to a single printer at a time; the
// connection owns the adapter's connect handler and would need rework to
// manage several devices at once.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tinygo.org/x/bluetooth"
)

var (
	// ErrNoDevicesFound means scanning finished without seeing a matching
	// printer. The caller may retry; this layer doesn't.
	ErrNoDevicesFound = errors.New("no matching printer found")
	// ErrConnectionFailed means the BLE link couldn't be established.
	ErrConnectionFailed = errors.New("couldn't connect to printer")
)

type deviceType byte

const (
	serviceType deviceType = 0x00
	writerType  deviceType = 0x02
)

func getUUID(t deviceType) bluetooth.UUID {
	return bluetooth.NewUUID([16]byte{
		0x00, 0x00, 0xff, byte(t), 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb,
	})
}

// BluetoothConnection holds the link to the printer's write characteristic
// (service 0xFF00, characteristic 0xFF02).
type BluetoothConnection struct {
	adapter   *bluetooth.Adapter
	device    bluetooth.Device
	writer    bluetooth.DeviceCharacteristic
	address   bluetooth.Address
	connected bool
}

func newBluetoothConnection() (*BluetoothConnection, error) {
	adapter := bluetooth.DefaultAdapter

	if err := adapter.Enable(); err != nil {
		slog.Error("Failed to enable Bluetooth", "err", err)
		return nil, err
	}

	return &BluetoothConnection{adapter: adapter}, nil
}

// FromName scans until a device whose advertised name contains the given
// fragment appears, or the context expires.
func FromName(ctx context.Context, name string) (*BluetoothConnection, error) {
	c, err := newBluetoothConnection()
	if err != nil {
		return nil, err
	}

	devices := make(chan bluetooth.ScanResult, 1)

	go func() {
		err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if strings.Contains(strings.ToUpper(result.LocalName()), strings.ToUpper(name)) {
				slog.Info("Found device:",
					"deviceName", result.LocalName(),
					"address", result.Address.String(),
				)
				devices <- result
				adapter.StopScan()
			}
		})
		if err != nil {
			slog.Error("Failed to scan for devices:",
				"err", err,
			)
			close(devices)
		}
	}()

	select {
	case dev, ok := <-devices:
		if !ok {
			return nil, ErrNoDevicesFound
		}
		c.address = dev.Address
		return c, nil
	case <-ctx.Done():
		c.adapter.StopScan()
		return nil, ErrNoDevicesFound
	}
}

// FromAddress skips discovery and targets a known device address.
func FromAddress(address string) (*BluetoothConnection, error) {
	c, err := newBluetoothConnection()
	if err != nil {
		return nil, err
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, err
	}
	c.address = bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}
	return c, nil
}

// Connect establishes the link and discovers the write characteristic.
func (c *BluetoothConnection) Connect() error {
	if c.connected {
		return nil
	}

	slog.Debug("Connecting to device...")
	device, err := c.adapter.Connect(c.address, bluetooth.ConnectionParams{})
	if err != nil {
		slog.Error("Failed to connect to device:",
			"err", err,
		)
		return errors.Join(ErrConnectionFailed, err)
	}

	// Discover the primary service (UUID 0xFF00)
	slog.Debug("Discovering service...")
	services, err := device.DiscoverServices([]bluetooth.UUID{getUUID(serviceType)})
	if err != nil {
		slog.Error("Failed to discover service:",
			"err", err,
		)
		device.Disconnect()
		return errors.Join(ErrConnectionFailed, err)
	}

	slog.Debug("Discovering characteristics...")
	characteristics, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{getUUID(writerType)})
	if err != nil {
		slog.Error("Failed to discover characteristics:",
			"err", err,
		)
		device.Disconnect()
		return errors.Join(ErrConnectionFailed, err)
	}
	c.writer = characteristics[0]

	c.device = device
	c.connected = true
	return nil
}

func (c *BluetoothConnection) Write(data []byte) error {
	_, err := c.writer.WriteWithoutResponse(data)

	if err != nil {
		slog.Error("Couldn't write data", "error", err)
	} else {
		slog.Debug("Wrote data to device", "size", len(data))
	}

	return err
}

func (c *BluetoothConnection) Disconnect() error {
	if c.connected {
		c.connected = false
		return c.device.Disconnect()
	}
	return nil
}
