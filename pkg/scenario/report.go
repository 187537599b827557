package scenario

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/muesli/termenv"
)

// Report is the outcome of one scenario run.
type Report struct {
	RunID    string `cbor:"run_id"`
	Scenario string `cbor:"scenario"`
	APICalls bool   `cbor:"api_calls"`

	Targets  []TargetResult `cbor:"targets,omitempty"`
	Checks   []CheckResult  `cbor:"checks,omitempty"`
	Loads    []LoadResult   `cbor:"loads,omitempty"`
	Sites    []SiteResult   `cbor:"sites,omitempty"`
	Failures []string       `cbor:"failures,omitempty"`
}

type TargetResult struct {
	Name      string `cbor:"name"`
	Kind      string `cbor:"kind"`
	Constant  bool   `cbor:"constant"`
	SimpleAPI bool   `cbor:"simple_api"`
	AcceptAny bool   `cbor:"accept_any"`
	Expected  string `cbor:"expected,omitempty"`
}

type CheckResult struct {
	Target        string `cbor:"target"`
	Receiver      string `cbor:"receiver"`
	Holder        string `cbor:"holder"`
	Realm         string `cbor:"realm"`
	Lookup        string `cbor:"lookup"`
	APIHolder     string `cbor:"api_holder,omitempty"`
	Compatible    bool   `cbor:"compatible"`
	AccessorRealm string `cbor:"accessor_realm,omitempty"`
	CrossRealm    bool   `cbor:"cross_realm"`
}

type LoadResult struct {
	Site     int    `cbor:"site"`
	Property string `cbor:"property"`
	Receiver string `cbor:"receiver"`
	Realm    string `cbor:"realm"`
	Value    string `cbor:"value,omitempty"`
	Error    string `cbor:"error,omitempty"`
	Path     string `cbor:"path"`
}

type SiteResult struct {
	ID       int    `cbor:"id"`
	Property string `cbor:"property"`
	State    string `cbor:"state"`
	Hits     uint64 `cbor:"hits"`
	Misses   uint64 `cbor:"misses"`
	Fast     uint64 `cbor:"fast"`
	Generic  uint64 `cbor:"generic"`
}

func (r *Report) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool {
	return len(r.Failures) == 0
}

// reportEncMode uses canonical encoding so identical runs produce identical
// bytes apart from the run id.
var reportEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("scenario: failed to create CBOR enc mode: %v", err))
	}
	reportEncMode = em
}

// EncodeCBOR serializes the report to CBOR bytes.
func (r *Report) EncodeCBOR() ([]byte, error) {
	return reportEncMode.Marshal(r)
}

// DecodeReport deserializes a report from CBOR bytes.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("scenario: unmarshal report: %w", err)
	}
	return &r, nil
}

// WriteText writes a human-readable report. With color set, outcomes are
// highlighted with ANSI colors.
func (r *Report) WriteText(w io.Writer, color bool) error {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI
	}
	paint := func(s string, c termenv.Color) string {
		return profile.String(s).Foreground(profile.Convert(c)).String()
	}
	verdict := func(ok bool, yes, no string) string {
		if ok {
			return paint(yes, termenv.ANSIGreen)
		}
		return paint(no, termenv.ANSIYellow)
	}

	ew := &errWriter{w: w}
	ew.printf("== %s (run %s, api calls %s)\n", r.Scenario, r.RunID, verdict(r.APICalls, "on", "off"))

	if len(r.Targets) > 0 {
		ew.printf("targets:\n")
	}
	for _, t := range r.Targets {
		expected := "<any>"
		if t.Expected != "" {
			expected = t.Expected
		}
		ew.printf("  %-16s %s expected=%s acceptAny=%v\n", t.Name, paint(t.Kind, termenv.ANSICyan), expected, t.AcceptAny)
	}

	if len(r.Checks) > 0 {
		ew.printf("checks:\n")
	}
	for _, c := range r.Checks {
		lookup := c.Lookup
		if c.APIHolder != "" {
			lookup += " -> " + c.APIHolder
		}
		accessorRealm := c.AccessorRealm
		if accessorRealm == "" {
			accessorRealm = "<none>"
		}
		ew.printf("  %s on %s (holder %s, realm %s): %s, %s, accessor realm %s, %s\n",
			c.Target, c.Receiver, c.Holder, c.Realm, lookup,
			verdict(c.Compatible, "compatible", "incompatible"),
			accessorRealm,
			verdict(!c.CrossRealm, "same realm", "cross realm"))
	}

	if len(r.Loads) > 0 {
		ew.printf("loads:\n")
	}
	for _, l := range r.Loads {
		outcome := fmt.Sprintf("%q", l.Value)
		if l.Error != "" {
			outcome = paint(l.Error, termenv.ANSIRed)
		}
		ew.printf("  site %d %s.%s in %s: %s via %s\n", l.Site, l.Receiver, l.Property, l.Realm, outcome,
			verdict(l.Path == PathFast, l.Path, l.Path))
	}
	for _, s := range r.Sites {
		ew.printf("  site %d %q: %s (hits: %d, misses: %d, fast: %d, generic: %d)\n",
			s.ID, s.Property, s.State, s.Hits, s.Misses, s.Fast, s.Generic)
	}

	for _, f := range r.Failures {
		ew.printf("%s %s\n", paint("FAIL", termenv.ANSIRed), f)
	}
	if r.Passed() {
		ew.printf("%s\n", paint("ok", termenv.ANSIGreen))
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
