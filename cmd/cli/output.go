package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/reconnoiter/internal/recon"
)

// Output formats.
const (
	outputAuto  = "auto"
	outputTable = "table"
	outputJSON  = "json"
)

// resolveOutput validates format and resolves auto: tables for a terminal,
// JSON when piped.
func resolveOutput(format string, w io.Writer) (string, error) {
	switch format {
	case outputTable, outputJSON:
		return format, nil
	case outputAuto, "":
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return outputTable, nil
		}
		return outputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (want table, json or auto)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderScanTable prints one scan result: a port table, then a web server
// table when any were fingerprinted.
func renderScanTable(w io.Writer, result *recon.ScanResult) error {
	fmt.Fprintf(w, "\n%s (%s) scanned in %s, %d open port(s)\n",
		result.Target, result.IP, time.Duration(result.Duration).String(), len(result.OpenPorts))
	if len(result.OpenPorts) == 0 {
		return nil
	}

	ports := tablewriter.NewWriter(w)
	ports.Header("Port", "Service", "Version", "Banner")
	for _, port := range result.OpenPorts {
		info := result.Services[port]
		if err := ports.Append([]string{
			strconv.Itoa(port),
			info.Service,
			deref(info.Version),
			truncate(oneLine(deref(info.Banner)), 60),
		}); err != nil {
			return err
		}
	}
	if err := ports.Render(); err != nil {
		return err
	}

	if len(result.WebServers) == 0 {
		return nil
	}
	web := tablewriter.NewWriter(w)
	web.Header("URL", "Status", "Server", "Technologies", "Security Headers")
	for _, ws := range result.WebServers {
		headers := make([]string, 0, len(ws.SecurityHeaders))
		for name := range ws.SecurityHeaders {
			headers = append(headers, name)
		}
		sort.Strings(headers)
		if err := web.Append([]string{
			ws.URL,
			strconv.Itoa(ws.StatusCode),
			ws.Server,
			strings.Join(ws.Technologies, ", "),
			strings.Join(headers, ", "),
		}); err != nil {
			return err
		}
	}
	return web.Render()
}

// renderList prints a one-column table of names under header.
func renderList(w io.Writer, header string, items []string) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	for _, item := range items {
		if err := table.Append([]string{item}); err != nil {
			return err
		}
	}
	return table.Render()
}

// printEvent writes one progress line for verbose runs.
func printEvent(w io.Writer, e recon.Event) {
	switch e.Type {
	case recon.EventStageStarted:
		fmt.Fprintf(w, "[%s] %s started (%d units)\n", e.Target, e.Stage, e.Count)
	case recon.EventStageCompleted:
		fmt.Fprintf(w, "[%s] %s done (%d found)\n", e.Target, e.Stage, e.Count)
	case recon.EventPortOpen:
		fmt.Fprintf(w, "[%s] port %d open\n", e.Target, e.Port)
	case recon.EventServiceIdentified:
		fmt.Fprintf(w, "[%s] port %d: %s\n", e.Target, e.Port, e.Value)
	case recon.EventWebFingerprinted:
		fmt.Fprintf(w, "[%s] web on port %d: %s\n", e.Target, e.Port, e.Value)
	case recon.EventSubdomainFound, recon.EventHostAlive:
		fmt.Fprintf(w, "[%s] %s\n", e.Target, e.Value)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
