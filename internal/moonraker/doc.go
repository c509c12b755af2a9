// Package moonraker is a small HTTP JSON client for the Moonraker API that
// Klipper printer hosts expose.
//
// Only the read-only endpoints used for discovery and history are covered:
//
//	GET /printer/info                 self-description, used to identify the API
//	GET /printer/objects/query?...    object status (temperatures, idle state, progress)
//	GET /server/history/totals        lifetime job totals
//	GET /server/history/list          paginated job log
//
// Some installs wrap history responses in {"result": ...} and some do not;
// both are accepted.
//
// # Errors
//
// Failures are returned as *DeviceError, classified into network, timeout,
// connection refused, HTTP, parse and shape errors so callers can decide
// whether a printer is absent, not Moonraker, or simply not ready. Use the
// Is* helpers or errors.As to inspect them. GetTroubleshootingHint turns an
// error into operator-facing advice for the CLI.
//
// # Usage Example
//
//	client := moonraker.NewClientWithURL("http://192.168.1.40:7125")
//
//	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
//	defer cancel()
//
//	totals, err := client.HistoryTotals(ctx)
//	if err != nil {
//	    fmt.Println(moonraker.GetTroubleshootingHint(err))
//	    return
//	}
//	fmt.Printf("%d jobs, %.1fh printing\n", totals.TotalJobs, totals.TotalPrintTime/3600)
package moonraker
