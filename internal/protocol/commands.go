// This file implements the command byte sequences understood by the Phomemo
// D30 label printer. The D30 speaks the same US 0x11 control family as the
// T02/M02 devices, plus an Epson ESC/POS-style raster command. The exact
// handshake was sniffed from the Android app "Print Master"; opcodes with no
// counterpart in the known command set are replayed verbatim, their meaning
// only empirically established.
package protocol

// Control characters
const (
	Esc = 0x1B
	GS  = 0x1D
	US  = 0x1F
)

// Type alias for the print intensity, which affects how dark the thermal
// head burns each dot.
type PrintIntensity byte

const (
	// DefaultIntensity is the level the vendor app selects for the D30.
	DefaultIntensity PrintIntensity = 0x02
)

// us11 builds a US 0x11 control command with the given opcode bytes.
func us11(op ...byte) []byte {
	return append([]byte{US, 0x11}, op...)
}

// Initialises the printer & prepares it to accept raster data
func initPrinter() []byte {
	return []byte{Esc, 0x40}
}

// Queries the serial number of the device.
func queryDeviceSerial() []byte {
	return us11(0x09)
}

// Queries the status of the paper loaded.
func queryPaperStatus() []byte {
	return us11(0x11)
}

// Queries the version of the firmware running on the device.
func queryFirmwareVersion() []byte {
	return us11(0x07)
}

// Sets the print intensity.
func setPrintIntensity(intensity PrintIntensity) []byte {
	return us11(0x02, byte(intensity))
}

// Prepares the printer to accept a raster data block. Observed at the start
// of every raster frame the vendor app sends; purpose of the trailing 0x00
// unknown.
func enterRasterMode() []byte {
	return us11(0x24, 0x00)
}

// Prepares the printer to print bitmap data of the dimensions passed in.
// widthBytes specifies the width of the bitmap data in bytes, with 8 pixels
// packed into 1 byte. heightRows specifies the height of the bitmap data in
// rows. After this command is written, (widthBytes * heightRows) bytes of
// raster data must then be written.
func printBitmapHeader(widthBytes byte, heightRows uint16) []byte {
	return []byte{
		GS, 0x76, 0x30, 0x00,
		widthBytes, 0x00,
		byte(heightRows & 0xFF), byte(heightRows >> 8),
	}
}

// concat joins several commands into a single write.
func concat(commands ...[]byte) []byte {
	var d []byte
	for _, c := range commands {
		d = append(d, c...)
	}
	return d
}
