package mirror

import "time"

// DefaultProbeURL is a small, stable file on raw.githubusercontent.com.
const DefaultProbeURL = "https://raw.githubusercontent.com/microsoft/vscode/main/LICENSE.txt"

// DefaultTimeout bounds each probe request.
const DefaultTimeout = 3 * time.Second

const directName = "Direct connection"

// Candidate is one download path. An empty Prefix means going to the origin directly.
type Candidate struct {
	Prefix string
	Name   string
}

// Direct returns the candidate that bypasses every mirror.
func Direct() Candidate {
	return Candidate{Prefix: "", Name: directName}
}

// DisplayName is used in log output.
func (c Candidate) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Prefix == "" {
		return directName
	}
	return c.Prefix
}

// URL joins the candidate's prefix with target.
func (c Candidate) URL(target string) string {
	return c.Prefix + target
}

// DefaultCandidates is the fixed GitHub mirror list, direct first.
func DefaultCandidates() []Candidate {
	return []Candidate{
		Direct(),
		{Prefix: "https://github.akams.cn/"},
		{Prefix: "https://github.moeyy.xyz/"},
		{Prefix: "https://tvv.tw/"},
	}
}

// Measurement is the outcome of probing one candidate.
type Measurement struct {
	Candidate Candidate
	Elapsed   time.Duration // only meaningful when Reachable
	Reachable bool
	Err       error
}
