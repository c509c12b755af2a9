package moonraker

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// PrinterInfo is the result of GET /printer/info.
type PrinterInfo struct {
	Hostname        string `json:"hostname"`
	SoftwareVersion string `json:"software_version"`
	StateMessage    string `json:"state_message"`
	State           string `json:"state"`
}

// ObjectStatus maps a printer object name (e.g. "extruder") to its raw
// attribute document from /printer/objects/query.
type ObjectStatus map[string]json.RawMessage

// JobTotals is the lifetime summary from /server/history/totals.
// Durations are seconds, filament is millimetres.
type JobTotals struct {
	TotalJobs         int     `json:"total_jobs"`
	TotalTime         float64 `json:"total_time"`
	TotalPrintTime    float64 `json:"total_print_time"`
	TotalFilamentUsed float64 `json:"total_filament_used"`
	LongestJob        float64 `json:"longest_job"`
	LongestPrint      float64 `json:"longest_print"`
}

// Job is one entry of /server/history/list.
//
// Optional numeric fields are pointers so absent and zero stay distinct.
// The original document is kept so a job can be reported exactly as the
// printer returned it.
type Job struct {
	JobID         string   `json:"job_id,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	Status        string   `json:"status,omitempty"`
	StartTime     *float64 `json:"start_time,omitempty"`
	EndTime       *float64 `json:"end_time,omitempty"`
	TotalDuration *float64 `json:"total_duration,omitempty"`
	PrintDuration *float64 `json:"print_duration,omitempty"`
	FilamentUsed  *float64 `json:"filament_used,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the known fields and keeps the full document.
// Fields of an unexpected type are treated as absent so the job is still
// counted; a numeric job_id is kept as its decimal text.
func (j *Job) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*j = Job{
		JobID:         looseString(fields["job_id"]),
		Filename:      looseString(fields["filename"]),
		Status:        looseString(fields["status"]),
		StartTime:     looseFloat(fields["start_time"]),
		EndTime:       looseFloat(fields["end_time"]),
		TotalDuration: looseFloat(fields["total_duration"]),
		PrintDuration: looseFloat(fields["print_duration"]),
		FilamentUsed:  looseFloat(fields["filament_used"]),
		raw:           append(json.RawMessage(nil), data...),
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func looseString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func looseFloat(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return &f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &v
		}
	}
	return nil
}

// MarshalJSON re-emits the printer's document when one is available.
func (j Job) MarshalJSON() ([]byte, error) {
	if len(j.raw) > 0 {
		return j.raw, nil
	}
	type plain Job
	return json.Marshal(plain(j))
}

// Duration returns the named duration field ("total_duration" or
// "print_duration") and whether it was present.
func (j *Job) Duration(field string) (float64, bool) {
	var v *float64
	switch field {
	case "total_duration":
		v = j.TotalDuration
	case "print_duration":
		v = j.PrintDuration
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Ended returns the job's end time, if the printer recorded one.
func (j *Job) Ended() (time.Time, bool) {
	return unixTime(j.EndTime)
}

// Started returns the job's start time, if the printer recorded one.
func (j *Job) Started() (time.Time, bool) {
	return unixTime(j.StartTime)
}

func unixTime(ts *float64) (time.Time, bool) {
	if ts == nil || *ts <= 0 {
		return time.Time{}, false
	}
	sec := int64(*ts)
	nsec := int64((*ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), true
}
