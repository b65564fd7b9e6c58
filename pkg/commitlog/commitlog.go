// Package commitlog defines the document emitted after a successful commit
// and the outbound sink it is submitted to. The log lists candidates for
// asynchronous deduplication plus per-type instance count deltas; the
// post-processing service consumes it out of band.
package commitlog

import (
	"encoding/json"
)

// Fix kinds accepted by the reconciler.
const (
	KindCasting  = "casting"
	KindResource = "resource"
)

// CountEntry records how many instances a commit added to (or removed
// from) one type.
type CountEntry struct {
	TypeLabel string `json:"type-label"`
	Delta     int64  `json:"delta"`
}

// FixEntry names the vertices sharing one index fingerprint; any two of
// them are duplicate candidates.
type FixEntry struct {
	Index      string   `json:"index"`
	ConceptIDs []string `json:"concept-ids"`
}

// Payload is the commit log document. Wire format is JSON with exactly
// these three top-level keys.
type Payload struct {
	InstanceCounts []CountEntry `json:"instance-counts"`
	Castings       []FixEntry   `json:"castings"`
	Resources      []FixEntry   `json:"resources"`
}

// Empty reports whether the payload carries nothing worth submitting.
func (p *Payload) Empty() bool {
	return len(p.InstanceCounts) == 0 && len(p.Castings) == 0 && len(p.Resources) == 0
}

// Marshal renders the wire form.
func (p *Payload) Marshal() ([]byte, error) {
	cp := *p
	if cp.InstanceCounts == nil {
		cp.InstanceCounts = []CountEntry{}
	}
	if cp.Castings == nil {
		cp.Castings = []FixEntry{}
	}
	if cp.Resources == nil {
		cp.Resources = []FixEntry{}
	}
	return json.Marshal(&cp)
}

// Unmarshal parses a wire-form payload.
func Unmarshal(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
