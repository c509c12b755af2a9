package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/muurk/fleethelm/internal/moonraker"
	"github.com/muurk/fleethelm/internal/neighbor"
	"github.com/muurk/fleethelm/internal/probe"
)

const (
	// DefaultQueryTimeout bounds each status query.
	DefaultQueryTimeout = 2 * time.Second

	// DefaultThumbnailPrefix is the gcode root of a stock MainsailOS/KIAUH install.
	DefaultThumbnailPrefix = "/home/pi/printer_data/gcodes/"
)

// Object queries sent for every printer. The heater queries ask for the
// motion objects as well so they fail the same way on a printer that is
// not ready.
const (
	queryExtruder  = "gcode_move&toolhead&extruder=target,temperature"
	queryExtruder1 = "gcode_move&toolhead&extruder1=target,temperature"
	queryExtruder2 = "gcode_move&toolhead&extruder2=target,temperature"
	queryBed       = "gcode_move&toolhead&heater_bed=target,temperature"
	queryIdle      = "idle_timeout"
	queryProgress  = "virtual_sdcard"
)

// StatusClient is the part of the Moonraker client the Fetcher needs.
type StatusClient interface {
	PrinterInfo(ctx context.Context) (*moonraker.PrinterInfo, error)
	QueryObjects(ctx context.Context, query string) (moonraker.ObjectStatus, error)
}

// Fetcher assembles a Device from a confirmed endpoint.
type Fetcher struct {
	Timeout         time.Duration
	ThumbnailPrefix string

	// NewClient builds the client for an endpoint. Replaced in tests.
	NewClient func(baseURL string) StatusClient
}

// NewFetcher creates a Fetcher that talks to Moonraker over HTTP.
func NewFetcher(timeout time.Duration, thumbnailPrefix string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Fetcher{
		Timeout:         timeout,
		ThumbnailPrefix: thumbnailPrefix,
		NewClient: func(baseURL string) StatusClient {
			return moonraker.NewClientWithURL(baseURL)
		},
	}
}

type heater struct {
	Temperature *float64 `json:"temperature"`
}

// Fetch runs the info query and the six object queries concurrently. Every
// one of them must succeed: a printer that cannot answer all of them is not
// ready and yields an error instead of a partial record.
func (f *Fetcher) Fetch(ctx context.Context, ep probe.Endpoint, entry neighbor.Entry) (*Device, error) {
	base := ep.BaseURL()
	client := f.NewClient(base)

	var (
		info     *moonraker.PrinterInfo
		statuses = make([]moonraker.ObjectStatus, 6)
		queries  = []string{queryExtruder, queryExtruder1, queryExtruder2, queryBed, queryIdle, queryProgress}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, f.Timeout)
		defer cancel()
		var err error
		info, err = client.PrinterInfo(cctx)
		return err
	})
	for i, q := range queries {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, f.Timeout)
			defer cancel()
			st, err := client.QueryObjects(cctx, q)
			if err != nil {
				return err
			}
			statuses[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dev := &Device{
		Hostname:        info.Hostname,
		IP:              ep.Address.String(),
		MAC:             entry.LinkAddress,
		BaseURL:         base,
		UIURL:           "http://" + ep.Address.String(),
		SoftwareVersion: info.SoftwareVersion,
		StateMessage:    info.StateMessage,
	}

	var err error
	if dev.ExtruderTemperature, err = temperature(statuses[0], "extruder", base); err != nil {
		return nil, err
	}
	if dev.Extruder1Temperature, err = temperature(statuses[1], "extruder1", base); err != nil {
		return nil, err
	}
	if dev.Extruder2Temperature, err = temperature(statuses[2], "extruder2", base); err != nil {
		return nil, err
	}
	if dev.HeaterBedTemperature, err = temperature(statuses[3], "heater_bed", base); err != nil {
		return nil, err
	}

	var idle struct {
		State *string `json:"state"`
	}
	if err := decodeObject(statuses[4], "idle_timeout", &idle); err != nil {
		return nil, moonraker.NewShapeError(err.Error(), base)
	}
	if idle.State == nil {
		return nil, moonraker.NewShapeError("idle_timeout has no state", base)
	}
	dev.Status = *idle.State

	var sd struct {
		Progress *float64 `json:"progress"`
		FilePath *string  `json:"file_path"`
	}
	if err := decodeObject(statuses[5], "virtual_sdcard", &sd); err != nil {
		return nil, moonraker.NewShapeError(err.Error(), base)
	}
	if sd.Progress != nil {
		dev.PrintProgress = *sd.Progress
	}
	if sd.FilePath != nil {
		dev.FilePath = *sd.FilePath
	}
	dev.ThumbnailURL = thumbnailURL(base, dev.FilePath, f.ThumbnailPrefix)

	return dev, nil
}

// temperature reads <name>.temperature; a printer without that heater
// reports nil, not an error.
func temperature(st moonraker.ObjectStatus, name, base string) (*float64, error) {
	raw, ok := st[name]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var h heater
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, moonraker.NewShapeError(fmt.Sprintf("%s status: %v", name, err), base)
	}
	return h.Temperature, nil
}

func decodeObject(st moonraker.ObjectStatus, name string, out any) error {
	raw, ok := st[name]
	if !ok {
		return fmt.Errorf("result.status has no %s", name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s status: %w", name, err)
	}
	return nil
}
