package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/muurk/fleethelm/internal/moonraker"
	"github.com/muurk/fleethelm/internal/neighbor"
	"github.com/muurk/fleethelm/internal/probe"
)

// fakePrinter serves the endpoints the Fetcher uses.
type fakePrinter struct {
	hostname string
	filePath string
	failPath string // RawQuery (or "info") answered with HTTP 500
	noIdle   bool
}

func (p fakePrinter) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/printer/info" {
			if p.failPath == "info" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprintf(w, `{"result":{"state":"ready","state_message":"Printer is ready","hostname":%q,"software_version":"v0.12.0-85"}}`, p.hostname)
			return
		}
		if r.URL.Path != "/printer/objects/query" {
			http.NotFound(w, r)
			return
		}
		if r.URL.RawQuery == p.failPath {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		switch r.URL.RawQuery {
		case queryExtruder:
			fmt.Fprint(w, `{"result":{"eventtime":1.0,"status":{"gcode_move":{},"toolhead":{},"extruder":{"temperature":210.5,"target":210.0}}}}`)
		case queryExtruder1, queryExtruder2:
			// single-extruder printer: the object is simply absent
			fmt.Fprint(w, `{"result":{"eventtime":1.0,"status":{"gcode_move":{},"toolhead":{}}}}`)
		case queryBed:
			fmt.Fprint(w, `{"result":{"eventtime":1.0,"status":{"gcode_move":{},"toolhead":{},"heater_bed":{"temperature":60.1,"target":60.0}}}}`)
		case queryIdle:
			if p.noIdle {
				fmt.Fprint(w, `{"result":{"eventtime":1.0,"status":{}}}`)
				return
			}
			fmt.Fprint(w, `{"result":{"eventtime":1.0,"status":{"idle_timeout":{"state":"Printing"}}}}`)
		case queryProgress:
			if p.filePath == "" {
				fmt.Fprint(w, `{"result":{"eventtime":1.0,"status":{"virtual_sdcard":{"progress":0.0,"file_path":null}}}}`)
				return
			}
			fmt.Fprintf(w, `{"result":{"eventtime":1.0,"status":{"virtual_sdcard":{"progress":0.42,"file_path":%q}}}}`, p.filePath)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
}

func (p fakePrinter) start(t *testing.T) probe.Endpoint {
	t.Helper()
	srv := httptest.NewServer(p.handler())
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	return probe.Endpoint{Address: netip.MustParseAddr("127.0.0.1"), Port: port}
}

func TestFetch_FullRecord(t *testing.T) {
	ep := fakePrinter{
		hostname: "voron24",
		filePath: "/home/pi/printer_data/gcodes/benchy.gcode",
	}.start(t)
	entry := neighbor.Entry{Address: ep.Address, LinkAddress: "d8-3a-dd-e0-c9-4b"}

	dev, err := NewFetcher(time.Second, DefaultThumbnailPrefix).Fetch(context.Background(), ep, entry)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if dev.Hostname != "voron24" {
		t.Errorf("Hostname = %q", dev.Hostname)
	}
	if dev.MAC != "d8-3a-dd-e0-c9-4b" {
		t.Errorf("MAC = %q", dev.MAC)
	}
	if dev.BaseURL != ep.BaseURL() {
		t.Errorf("BaseURL = %q, want %q", dev.BaseURL, ep.BaseURL())
	}
	if dev.UIURL != "http://127.0.0.1" {
		t.Errorf("UIURL = %q", dev.UIURL)
	}
	if dev.Status != "Printing" {
		t.Errorf("Status = %q", dev.Status)
	}
	if dev.SoftwareVersion != "v0.12.0-85" || dev.StateMessage != "Printer is ready" {
		t.Errorf("info fields = %q / %q", dev.SoftwareVersion, dev.StateMessage)
	}
	if dev.ExtruderTemperature == nil || *dev.ExtruderTemperature != 210.5 {
		t.Errorf("ExtruderTemperature = %v", dev.ExtruderTemperature)
	}
	if dev.Extruder1Temperature != nil || dev.Extruder2Temperature != nil {
		t.Error("missing extruders should be nil, not an error")
	}
	if dev.HeaterBedTemperature == nil || *dev.HeaterBedTemperature != 60.1 {
		t.Errorf("HeaterBedTemperature = %v", dev.HeaterBedTemperature)
	}
	if dev.PrintProgress != 0.42 {
		t.Errorf("PrintProgress = %v", dev.PrintProgress)
	}
	if dev.ThumbnailURL != ep.BaseURL()+"/server/files/thumbnails?filename=benchy.gcode" {
		t.Errorf("ThumbnailURL = %q", dev.ThumbnailURL)
	}
}

func TestFetch_NoFileLoaded(t *testing.T) {
	ep := fakePrinter{hostname: "ender3"}.start(t)

	dev, err := NewFetcher(time.Second, DefaultThumbnailPrefix).Fetch(context.Background(), ep, neighbor.Entry{Address: ep.Address})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if dev.FilePath != "" || dev.ThumbnailURL != "" {
		t.Errorf("FilePath = %q, ThumbnailURL = %q; want both empty", dev.FilePath, dev.ThumbnailURL)
	}
}

func TestFetch_PartialTelemetryDropsDevice(t *testing.T) {
	tests := []struct {
		name      string
		printer   fakePrinter
		wantShape bool
	}{
		{"info fails", fakePrinter{hostname: "a", failPath: "info"}, false},
		{"bed query fails", fakePrinter{hostname: "a", failPath: queryBed}, false},
		{"extruder2 query fails", fakePrinter{hostname: "a", failPath: queryExtruder2}, false},
		{"progress query fails", fakePrinter{hostname: "a", failPath: queryProgress}, false},
		{"idle state missing", fakePrinter{hostname: "a", noIdle: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := tt.printer.start(t)

			dev, err := NewFetcher(time.Second, DefaultThumbnailPrefix).Fetch(context.Background(), ep, neighbor.Entry{Address: ep.Address})
			if err == nil {
				t.Fatalf("Fetch() = %+v, want error", dev)
			}
			if dev != nil {
				t.Error("no partial record should be returned")
			}
			if moonraker.IsShapeError(err) != tt.wantShape {
				t.Errorf("IsShapeError = %v, want %v (%v)", moonraker.IsShapeError(err), tt.wantShape, err)
			}
		})
	}
}
