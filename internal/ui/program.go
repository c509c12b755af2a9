package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/muurk/fleethelm/internal/discovery"
	"github.com/muurk/fleethelm/internal/fleet"
	"github.com/muurk/fleethelm/internal/moonraker"
)

// Printer writes styled CLI output.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	width := MaxContentWidth
	if IsTerminal(w) {
		width = GetTerminalWidth()
	}
	return &Printer{out: w, width: width}
}

// Width returns the content width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Param) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintError prints an error result box. Troubleshooting hints for
// printer errors are added automatically.
func (p *Printer) PrintError(title string, err error, troubleshooting ...string) {
	var devErr *moonraker.DeviceError
	if errors.As(err, &devErr) {
		troubleshooting = append(troubleshooting, moonraker.GetTroubleshootingHint(err))
	}
	p.Println(NewFailureResult(title, err, troubleshooting...).SetWidth(p.width).Render())
}

// PrintDevices prints the discovered printers as a table
func (p *Printer) PrintDevices(devices []discovery.Device) {
	p.Println(RenderDevices(devices, p.width))
}

// PrintFleet prints a fleet history report
func (p *Printer) PrintFleet(report *fleet.Report) {
	p.Println(RenderFleet(report, p.width))
}

// PrintJSON writes v as indented JSON.
func (p *Printer) PrintJSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
