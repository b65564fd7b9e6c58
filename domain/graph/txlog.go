package graph

import (
	"sort"

	"github.com/lattice-kb/lattice.graph/pkg/commitlog"
)

// txLog is the per-transaction scratch cache: touched concepts, new
// relations by fingerprint, and the modification sets the commit log is
// computed from. It is never shared across transactions.
type txLog struct {
	// ontologySnapshot is the shared cache view taken at transaction
	// start. Values are immutable; they are cloned into cachedTypes on
	// first touch.
	ontologySnapshot map[string]*Type

	// cachedTypes holds transaction-local type clones by label.
	cachedTypes map[string]*Type

	// cachedConcepts holds every concept touched by id.
	cachedConcepts map[ConceptID]Concept

	// newRelations maps relation fingerprints to the relation concept so
	// one transaction never builds the same relation twice.
	newRelations map[string]*Instance

	// modification sets feeding the commit log
	modifiedCastings  map[string][]ConceptID // index -> casting vertex ids
	modifiedResources map[string][]ConceptID // index -> resource vertex ids
	modifiedRelations map[string]*Instance   // fingerprint -> relation

	// instanceCountDeltas accumulates per-type-label count changes.
	instanceCountDeltas map[string]int64
}

func newTxLog(snapshot map[string]*Type) *txLog {
	return &txLog{
		ontologySnapshot:    snapshot,
		cachedTypes:         make(map[string]*Type),
		cachedConcepts:      make(map[ConceptID]Concept),
		newRelations:        make(map[string]*Instance),
		modifiedCastings:    make(map[string][]ConceptID),
		modifiedResources:   make(map[string][]ConceptID),
		modifiedRelations:   make(map[string]*Instance),
		instanceCountDeltas: make(map[string]int64),
	}
}

// typeByLabel returns the transaction-local view of a cached type,
// cloning lazily from the ontology snapshot on first touch.
func (l *txLog) typeByLabel(label string) (*Type, bool) {
	if t, ok := l.cachedTypes[label]; ok {
		return t, true
	}
	if snap, ok := l.ontologySnapshot[label]; ok {
		t := snap.clone()
		l.cacheType(t)
		return t, true
	}
	return nil, false
}

func (l *txLog) cacheType(t *Type) {
	l.cachedTypes[t.Label] = t
	l.cachedConcepts[t.ID()] = t
}

func (l *txLog) cacheConcept(c Concept) {
	l.cachedConcepts[c.ID()] = c
	if t, ok := c.(*Type); ok {
		l.cachedTypes[t.Label] = t
	}
}

func (l *txLog) conceptByID(id ConceptID) (Concept, bool) {
	c, ok := l.cachedConcepts[id]
	return c, ok
}

func (l *txLog) removeConcept(id ConceptID) {
	if c, ok := l.cachedConcepts[id]; ok {
		if t, isType := c.(*Type); isType {
			delete(l.cachedTypes, t.Label)
		}
		delete(l.cachedConcepts, id)
	}
}

func (l *txLog) trackCasting(index string, id ConceptID) {
	l.modifiedCastings[index] = appendUnique(l.modifiedCastings[index], id)
}

func (l *txLog) trackResource(index string, id ConceptID) {
	l.modifiedResources[index] = appendUnique(l.modifiedResources[index], id)
}

func (l *txLog) trackRelation(index string, rel *Instance) {
	l.modifiedRelations[index] = rel
}

func (l *txLog) relationByIndex(index string) (*Instance, bool) {
	if rel, ok := l.newRelations[index]; ok {
		return rel, true
	}
	if rel, ok := l.modifiedRelations[index]; ok {
		return rel, true
	}
	return nil, false
}

func (l *txLog) addInstanceCount(typeLabel string, delta int64) {
	l.instanceCountDeltas[typeLabel] += delta
}

// submissionNeeded reports whether this transaction produced anything the
// post-processing service must see.
func (l *txLog) submissionNeeded() bool {
	return len(l.instanceCountDeltas) > 0 ||
		len(l.modifiedCastings) > 0 ||
		len(l.modifiedResources) > 0
}

// buildCommitLog renders the modification sets into the wire payload,
// deterministically ordered.
func (l *txLog) buildCommitLog() *commitlog.Payload {
	p := &commitlog.Payload{}

	labels := make([]string, 0, len(l.instanceCountDeltas))
	for label, delta := range l.instanceCountDeltas {
		if delta != 0 {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	for _, label := range labels {
		p.InstanceCounts = append(p.InstanceCounts, commitlog.CountEntry{
			TypeLabel: label,
			Delta:     l.instanceCountDeltas[label],
		})
	}

	p.Castings = fixEntries(l.modifiedCastings)
	p.Resources = fixEntries(l.modifiedResources)
	return p
}

func fixEntries(byIndex map[string][]ConceptID) []commitlog.FixEntry {
	indexes := make([]string, 0, len(byIndex))
	for index := range byIndex {
		indexes = append(indexes, index)
	}
	sort.Strings(indexes)

	entries := make([]commitlog.FixEntry, 0, len(indexes))
	for _, index := range indexes {
		ids := byIndex[index]
		strs := make([]string, len(ids))
		for i, id := range ids {
			strs[i] = string(id)
		}
		entries = append(entries, commitlog.FixEntry{Index: index, ConceptIDs: strs})
	}
	return entries
}

func appendUnique(ids []ConceptID, id ConceptID) []ConceptID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
