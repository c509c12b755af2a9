package urls

// Documentation links surfaced by CLI troubleshooting output.

// MoonrakerInstall covers installing and exposing the Moonraker API server,
// including the default port 7125 and reverse proxies on port 80.
const MoonrakerInstall = "https://moonraker.readthedocs.io/en/latest/installation/"

// MoonrakerHistoryAPI documents /server/history/totals and /server/history/list,
// which the history aggregate depends on.
const MoonrakerHistoryAPI = "https://moonraker.readthedocs.io/en/latest/external_api/history/"

// MoonrakerTrustedClients explains the authorization section; printers that
// reject untrusted clients answer 401 and are dropped from discovery.
const MoonrakerTrustedClients = "https://moonraker.readthedocs.io/en/latest/configuration/#authorization"

// NeighborTable explains how the operating system neighbor cache is populated
// and why printers that have not exchanged traffic recently can be missing.
const NeighborTable = "https://man7.org/linux/man-pages/man7/arp.7.html"
