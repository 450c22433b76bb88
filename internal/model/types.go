package model

// Answer is one resource record inside a bulk resolver response. The resolver
// emits a tagged variant keyed on Type; only A answers are interpreted, the
// rest parse and pass through untouched.
type Answer struct {
	Type string `json:"type"`
	Name string `json:"name"`
	TTL  int    `json:"ttl"`
	Data string `json:"data"`
}

type AnswerSection struct {
	Answers []Answer `json:"answers"`
}

// ResolutionRecord is one JSON line of bulk resolver output. Name carries the
// trailing-dot root form as written by the resolver.
type ResolutionRecord struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Resolver string        `json:"resolver"`
	Data     AnswerSection `json:"data"`
}

// WildcardProfile describes a domain's wildcard record set as sampled from its
// authoritative nameservers. An empty profile means no wildcard filtering
// applies. A profile is either fully populated or fully empty.
type WildcardProfile struct {
	IPs map[string]struct{}
	TTL int
}

func (p WildcardProfile) Empty() bool {
	return len(p.IPs) == 0 || p.TTL == 0
}

func (p WildcardProfile) Contains(ip string) bool {
	_, ok := p.IPs[ip]
	return ok
}

// Reason explains a classification verdict.
type Reason string

const (
	ReasonOK          Reason = "OK"
	ReasonIPBlacklist Reason = "IP blacklist"
	ReasonIPWildcard  Reason = "IP wildcard"
	ReasonIPExceeded  Reason = "IP exceeded"
)

// Verdict is the classifier's decision for a single A answer.
type Verdict struct {
	Valid  bool
	Reason Reason
}

// SubdomainInfo aggregates the answers of an accepted name. It exists only
// when every A answer of the name passed validation.
type SubdomainInfo struct {
	TTL      []int    `json:"ttl"`
	CNAME    []string `json:"cname"`
	IP       []string `json:"ip"`
	Public   []bool   `json:"public"`
	Times    []int    `json:"times"`
	Resolver string   `json:"resolver"`
	Reason   Reason   `json:"reason"`
}
