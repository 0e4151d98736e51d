package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/veloguard/veloguard/pkg/activity"
)

// HTTPAdapter is a generic HTTP adapter that can call any REST feed and
// extract station snapshots using JSON path expressions.
//
// It supports:
//   - Configurable HTTP method (GET, POST, etc.)
//   - Template-based request body with variables: {{.WindowSeconds}}, {{.Start}}, {{.End}}
//   - Custom headers including authentication (Bearer tokens, API keys, etc.)
//   - JSON path extraction per column using gjson syntax
//   - Flexible timestamp parsing (RFC3339, Unix seconds, Unix milliseconds)
//
// Example configuration for an open-data station feed:
//
//	adapter := &HTTPAdapter{
//	    URL: "https://data.example.com/stations/status",
//	    Headers: map[string]string{
//	        "Authorization": "Bearer {{.Token}}",
//	    },
//	    StationPath:   "records.#.station_id",
//	    TimestampPath: "records.#.timestamp",
//	    StandsPath:    "records.#.available_stands",
//	    BikesPath:     "records.#.available_bikes",
//	    StatusPath:    "records.#.status",
//	}
type HTTPAdapter struct {
	// URL is the endpoint to call (required)
	URL string

	// Method is the HTTP method (GET, POST, etc.). Defaults to GET if empty.
	Method string

	// Headers are custom HTTP headers to include in the request.
	// Values can use template variables like {{.Token}}.
	Headers map[string]string

	// Body is the request body template (for POST/PUT). Supports variables:
	//   {{.WindowSeconds}} - the collection window in seconds
	//   {{.Start}}         - start time as Unix timestamp
	//   {{.End}}           - end time as Unix timestamp
	//   {{.StartRFC3339}}  - start time as RFC3339 string
	//   {{.EndRFC3339}}    - end time as RFC3339 string
	Body string

	// StationPath is the gjson path to station identifiers.
	// Use "#" for arrays, e.g. "records.#.station_id".
	StationPath string

	// TimestampPath is the gjson path to snapshot timestamps. Must return
	// the same number of elements as StationPath.
	TimestampPath string

	// StandsPath and BikesPath are the gjson paths to the availability
	// counters. Either may be empty or yield nulls; missing readings become
	// nil fields on the record rather than zeros.
	StandsPath string
	BikesPath  string

	// StatusPath is the gjson path to the station open/closed status.
	// Accepts 0/1 numbers or "CLOSED"/"OPEN" strings. If empty, stations
	// are assumed open.
	StatusPath string

	// TimestampFormat specifies how to parse timestamps:
	//   "rfc3339"    - RFC3339 strings (default)
	//   "unix"       - Unix seconds (float or int)
	//   "unix_milli" - Unix milliseconds (float or int)
	TimestampFormat string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are custom variables available in Body and Headers
	// templates. Use this to pass tokens, API keys, etc.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Collect implements Adapter. It calls the configured endpoint and extracts
// station snapshots using the configured JSON paths. The result is sorted
// by station then timestamp with exact duplicates removed.
func (h *HTTPAdapter) Collect(ctx context.Context, windowSeconds int) ([]activity.Record, error) {
	if err := h.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	start := now.Add(-time.Duration(windowSeconds) * time.Second)

	templateData := map[string]any{
		"WindowSeconds": windowSeconds,
		"Start":         start.Unix(),
		"End":           now.Unix(),
		"StartRFC3339":  start.Format(time.RFC3339),
		"EndRFC3339":    now.Format(time.RFC3339),
	}
	for k, v := range h.TemplateVars {
		templateData[k] = v
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if h.Body != "" {
		rendered, err := renderTemplate(h.Body, templateData)
		if err != nil {
			return nil, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = bytes.NewBufferString(rendered)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return h.parseRecords(respBody)
}

func (h *HTTPAdapter) parseRecords(body []byte) ([]activity.Record, error) {
	stations := gjson.GetBytes(body, h.StationPath)
	timestamps := gjson.GetBytes(body, h.TimestampPath)

	if !stations.Exists() {
		return nil, fmt.Errorf("station path %q not found in response", h.StationPath)
	}
	if !timestamps.Exists() {
		return nil, fmt.Errorf("timestamp path %q not found in response", h.TimestampPath)
	}

	stationArr := stations.Array()
	tsArr := timestamps.Array()
	if len(stationArr) != len(tsArr) {
		return nil, fmt.Errorf("station count (%d) != timestamp count (%d)", len(stationArr), len(tsArr))
	}

	standsArr := optionalColumn(body, h.StandsPath, len(stationArr))
	bikesArr := optionalColumn(body, h.BikesPath, len(stationArr))
	statusArr := optionalColumn(body, h.StatusPath, len(stationArr))

	records := make([]activity.Record, 0, len(stationArr))
	for i := range stationArr {
		ts, err := h.parseTimestamp(tsArr[i])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp[%d]: %w", i, err)
		}

		r := activity.Record{
			StationID:       int(stationArr[i].Int()),
			Timestamp:       ts,
			AvailableStands: optionalInt(standsArr, i),
			AvailableBikes:  optionalInt(bikesArr, i),
			Status:          parseStatus(statusArr, i),
		}
		records = append(records, r)
	}

	activity.SortRecords(records)
	return activity.Dedupe(records), nil
}

// optionalColumn extracts a column that may be absent from the feed. A
// missing path yields nil so every row of that column reads as missing.
func optionalColumn(body []byte, path string, want int) []gjson.Result {
	if path == "" {
		return nil
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return nil
	}
	arr := res.Array()
	if len(arr) != want {
		return nil
	}
	return arr
}

func optionalInt(arr []gjson.Result, i int) *int {
	if arr == nil {
		return nil
	}
	v := arr[i]
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	return activity.Int(int(v.Int()))
}

func parseStatus(arr []gjson.Result, i int) int {
	if arr == nil {
		return activity.StatusOpen
	}
	v := arr[i]
	switch v.Type {
	case gjson.String:
		if strings.EqualFold(v.String(), "closed") {
			return activity.StatusClosed
		}
		return activity.StatusOpen
	case gjson.Null:
		return activity.StatusOpen
	default:
		if v.Int() == 0 {
			return activity.StatusClosed
		}
		return activity.StatusOpen
	}
}

// parseTimestamp parses a timestamp according to the configured format
func (h *HTTPAdapter) parseTimestamp(value gjson.Result) (time.Time, error) {
	format := h.TimestampFormat
	if format == "" {
		format = "rfc3339"
	}

	switch format {
	case "rfc3339":
		return time.Parse(time.RFC3339, value.String())

	case "unix":
		// Unix seconds (supports both int and float)
		sec := value.Float()
		return time.Unix(int64(sec), 0).UTC(), nil

	case "unix_milli":
		ms := value.Float()
		return time.UnixMilli(int64(ms)).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", format)
	}
}

// renderTemplate renders a text template with the given data
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ValidateConfig checks if the adapter configuration is valid
func (h *HTTPAdapter) ValidateConfig() error {
	if h.URL == "" {
		return errors.New("url is required")
	}
	if h.StationPath == "" {
		return errors.New("stationPath is required")
	}
	if h.TimestampPath == "" {
		return errors.New("timestampPath is required")
	}

	validFormats := map[string]bool{
		"":           true,
		"rfc3339":    true,
		"unix":       true,
		"unix_milli": true,
	}
	if !validFormats[h.TimestampFormat] {
		return fmt.Errorf("invalid timestampFormat: %s (must be rfc3339, unix, or unix_milli)", h.TimestampFormat)
	}

	return nil
}
