package echoping

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"

	"github.com/drgkaleda/go-echoping/config"
	"github.com/drgkaleda/go-echoping/pingdata"
	"github.com/drgkaleda/go-echoping/pinger"
	"gopkg.in/yaml.v3"
)

// Reporter renders probe results and session summary.
// Per probe lines are written in text format only.
type Reporter struct {
	w      io.Writer
	format string
	host   string
	size   int
}

// NewReporter creates reporter for target host. Size is the byte count shown
// on every line.
func NewReporter(w io.Writer, format, host string, size int) *Reporter {
	return &Reporter{w: w, format: format, host: host, size: size}
}

// Start prints banner
func (r *Reporter) Start(addr netip.Addr) {
	if r.format != config.OutputText {
		return
	}
	fmt.Fprintf(r.w, "--------- Pinging host %s %d bytes of data---------\n", addr, r.size)
}

// HandleResult prints one probe outcome
func (r *Reporter) HandleResult(addr netip.Addr, res pinger.Result) {
	if r.format != config.OutputText {
		return
	}
	if res.OK() {
		fmt.Fprintf(r.w, "%d bytes from %s: time=%d ms\n", r.size, addr, res.RTT.Milliseconds())
		return
	}
	fmt.Fprintln(r.w, "Timeout fired, packet wasn't received.")
}

type summaryDoc struct {
	Host             string `json:"host" yaml:"host"`
	Address          string `json:"address" yaml:"address"`
	pingdata.Summary `yaml:",inline"`
}

// Summary prints session statistics
func (r *Reporter) Summary(addr netip.Addr, sum pingdata.Summary) error {
	doc := summaryDoc{Host: r.host, Address: addr.String(), Summary: sum}

	switch r.format {
	case config.OutputJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case config.OutputYAML:
		enc := yaml.NewEncoder(r.w)
		defer enc.Close()
		return enc.Encode(doc)
	}

	fmt.Fprintln(r.w, "\n-----------------------------------")
	fmt.Fprintf(r.w, "Ping statistics for %s:\n", r.host)
	if sum.NoData() {
		fmt.Fprintf(r.w, "\tNo packets were received\n\n")
		return nil
	}
	fmt.Fprintf(r.w, "\tPackets: Sent = %d, Received = %d, Lost = %d (%d%% loss),\n",
		sum.Sent, sum.Received, sum.Lost, sum.LossPercent)
	fmt.Fprintln(r.w, "Approximate round trip times in milli-seconds:")
	fmt.Fprintf(r.w, "\tMinimum = %dms, Maximum = %dms, Average = %dms\n\n",
		sum.RTT.MinMs, sum.RTT.MaxMs, sum.RTT.AvgMs)
	return nil
}
