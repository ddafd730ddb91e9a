package state

// MismatchSeverity controls how the copier's "mismatches" exit bit is
// scored (spec §4.4 step 3).
type MismatchSeverity string

const (
	MismatchWarning MismatchSeverity = "warning"
	MismatchError   MismatchSeverity = "error"
	MismatchSuccess MismatchSeverity = "success"
)

// ScanMode selects the chunk-planning strategy (spec §4.3).
type ScanMode string

const (
	ScanFlat  ScanMode = "flat"
	ScanSmart ScanMode = "smart"
)

// Options is the explicit, enumerated copier option bundle. Unknown
// fields in the source config are a ConfigurationInvalid error rather
// than being silently accepted (spec §9 replaces dynamic option bags
// with a fixed struct).
type Options struct {
	Switches          []string         `json:"switches" yaml:"switches"`
	ExcludeFiles      []string         `json:"exclude_files" yaml:"exclude_files"`
	ExcludeDirs       []string         `json:"exclude_dirs" yaml:"exclude_dirs"`
	NoMirror          bool             `json:"no_mirror" yaml:"no_mirror"`
	SkipJunctions     bool             `json:"skip_junctions" yaml:"skip_junctions"`
	RetryCount        int              `json:"retry_count" yaml:"retry_count"`
	RetryWait         int              `json:"retry_wait" yaml:"retry_wait"`
	InterPacketGapMs  int              `json:"inter_packet_gap_ms" yaml:"inter_packet_gap_ms"`
	MismatchSeverity  MismatchSeverity `json:"mismatch_severity" yaml:"mismatch_severity"`
	ThreadsPerJob     int              `json:"threads_per_job" yaml:"threads_per_job"`
}

// Credential authenticates a remote VSS management call or UNC mount.
// String() and the logrus Fields it can feed are always redacted so the
// password never reaches a log line.
type Credential struct {
	Username string `json:"username" yaml:"username"`
	Domain   string `json:"domain" yaml:"domain"`
	Password string `json:"password" yaml:"password"`
}

// String redacts the credential for logging/fmt.
func (c Credential) String() string {
	if c.Username == "" {
		return "<no-credential>"
	}
	return c.Domain + "\\" + c.Username + ":***"
}

// Profile is a user-level unit of work (spec §3).
type Profile struct {
	Name                    string           `json:"name" yaml:"name"`
	Source                  string           `json:"source" yaml:"source"`
	Destination             string           `json:"destination" yaml:"destination"`
	ScanMode                ScanMode         `json:"scan_mode" yaml:"scan_mode"`
	MaxChunkSizeBytes       int64            `json:"max_chunk_size_bytes" yaml:"max_chunk_size_bytes"`
	MaxChunkFiles           int              `json:"max_chunk_files" yaml:"max_chunk_files"`
	MaxChunkDepth           int              `json:"max_chunk_depth" yaml:"max_chunk_depth"`
	Options                 Options          `json:"options" yaml:"options"`
	UseVSS                  bool             `json:"use_vss" yaml:"use_vss"`
	MismatchSeverityOverride MismatchSeverity `json:"mismatch_severity_override,omitempty" yaml:"mismatch_severity_override,omitempty"`
	Credential              *Credential      `json:"credential,omitempty" yaml:"credential,omitempty"`
}

// EffectiveMismatchSeverity resolves the per-profile override against the
// options default.
func (p *Profile) EffectiveMismatchSeverity() MismatchSeverity {
	if p.MismatchSeverityOverride != "" {
		return p.MismatchSeverityOverride
	}
	if p.Options.MismatchSeverity != "" {
		return p.Options.MismatchSeverity
	}
	return MismatchWarning
}
