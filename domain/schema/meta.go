package schema

// MetaType is one of the bootstrap types forming the ontology root. Their
// ids are fixed and dense so that every keyspace agrees on them.
type MetaType struct {
	ID    int64
	Label string
	Kind  BaseKind
}

// The meta ontology. Ids 1..8 are reserved; user type ids start after them.
var (
	MetaConcept        = MetaType{ID: 1, Label: "concept", Kind: KindType}
	MetaEntityType     = MetaType{ID: 2, Label: "entity-type", Kind: KindEntityType}
	MetaRelationType   = MetaType{ID: 3, Label: "relation-type", Kind: KindRelationType}
	MetaResourceType   = MetaType{ID: 4, Label: "resource-type", Kind: KindResourceType}
	MetaRoleType       = MetaType{ID: 5, Label: "role-type", Kind: KindRoleType}
	MetaRuleType       = MetaType{ID: 6, Label: "rule-type", Kind: KindRuleType}
	MetaInferenceRule  = MetaType{ID: 7, Label: "inference-rule", Kind: KindRuleType}
	MetaConstraintRule = MetaType{ID: 8, Label: "constraint-rule", Kind: KindRuleType}
)

// MetaTypes lists the bootstrap types in id order.
var MetaTypes = []MetaType{
	MetaConcept,
	MetaEntityType,
	MetaRelationType,
	MetaResourceType,
	MetaRoleType,
	MetaRuleType,
	MetaInferenceRule,
	MetaConstraintRule,
}

// FirstUserTypeID is the first type id handed out to user-defined types.
var FirstUserTypeID = int64(len(MetaTypes)) + 1

var metaByLabel = func() map[string]MetaType {
	m := make(map[string]MetaType, len(MetaTypes))
	for _, mt := range MetaTypes {
		m[mt.Label] = mt
	}
	return m
}()

// IsMetaLabel reports whether label names a bootstrap type.
func IsMetaLabel(label string) bool {
	_, ok := metaByLabel[label]
	return ok
}

// MetaByLabel resolves a bootstrap type by label.
func MetaByLabel(label string) (MetaType, bool) {
	mt, ok := metaByLabel[label]
	return mt, ok
}

// SystemKeyspace is the reserved keyspace holding engine bookkeeping.
// Commits against it never emit commit logs.
const SystemKeyspace = "graph.system"

// Implicit type labels for resource ownership. Attaching a resource of
// type L to an owner goes through the implicit relation has-L with roles
// has-L-owner and has-L-value.
func ImplicitRelationLabel(resourceLabel string) string { return "has-" + resourceLabel }

func ImplicitOwnerRoleLabel(resourceLabel string) string { return "has-" + resourceLabel + "-owner" }

func ImplicitValueRoleLabel(resourceLabel string) string { return "has-" + resourceLabel + "-value" }
