// Package schema fixes the vocabulary the engine writes into the
// property-graph substrate: base kinds, edge labels, reserved property
// keys, and the meta ontology that bootstraps every keyspace.
package schema

// BaseKind discriminates what a vertex represents. It is stored on every
// vertex and is the only thing the concept factory needs to rebuild a
// typed concept from a raw vertex.
type BaseKind string

const (
	KindType         BaseKind = "TYPE"
	KindEntityType   BaseKind = "ENTITY_TYPE"
	KindRelationType BaseKind = "RELATION_TYPE"
	KindResourceType BaseKind = "RESOURCE_TYPE"
	KindRoleType     BaseKind = "ROLE_TYPE"
	KindRuleType     BaseKind = "RULE_TYPE"
	KindEntity       BaseKind = "ENTITY"
	KindRelation     BaseKind = "RELATION"
	KindResource     BaseKind = "RESOURCE"
	KindRule         BaseKind = "RULE"
	KindCasting      BaseKind = "CASTING"
)

// IsTypeKind reports whether k names a schema-level concept.
func (k BaseKind) IsTypeKind() bool {
	switch k {
	case KindType, KindEntityType, KindRelationType, KindResourceType, KindRoleType, KindRuleType:
		return true
	}
	return false
}

// InstanceKind returns the instance kind produced by a type of kind k.
func (k BaseKind) InstanceKind() (BaseKind, bool) {
	switch k {
	case KindEntityType:
		return KindEntity, true
	case KindRelationType:
		return KindRelation, true
	case KindResourceType:
		return KindResource, true
	case KindRuleType:
		return KindRule, true
	}
	return "", false
}

// EdgeLabel is the label of a substrate edge.
type EdgeLabel string

const (
	// EdgeSub links a type to its supertype.
	EdgeSub EdgeLabel = "SUB"
	// EdgeShard links a shard vertex to the type it partitions.
	EdgeShard EdgeLabel = "SHARD"
	// EdgeCasting links a relation to a casting.
	EdgeCasting EdgeLabel = "CASTING"
	// EdgeRolePlayer links a casting to the instance playing the role.
	EdgeRolePlayer EdgeLabel = "ROLE_PLAYER"
	// EdgeShortcut links a relation directly to a role player,
	// denormalised for query traversal.
	EdgeShortcut EdgeLabel = "SHORTCUT"
	// EdgeIsa links an instance to a shard of its direct type.
	EdgeIsa EdgeLabel = "ISA"
	// EdgeHasRole links a relation type to a role type on its role list.
	EdgeHasRole EdgeLabel = "HAS_ROLE"
)

// PropertyKey is a reserved vertex property key.
type PropertyKey string

const (
	PropID            PropertyKey = "ID"
	PropTypeLabel     PropertyKey = "TYPE_LABEL"
	PropTypeID        PropertyKey = "TYPE_ID"
	PropInstanceCount PropertyKey = "INSTANCE_COUNT"
	PropIsAbstract    PropertyKey = "IS_ABSTRACT"
	PropIsShard       PropertyKey = "IS_SHARD"
	PropIsImplicit    PropertyKey = "IS_IMPLICIT"
	PropCurrentShard  PropertyKey = "CURRENT_SHARD"
	PropIndex         PropertyKey = "INDEX"
	PropDataType      PropertyKey = "DATA_TYPE"
	PropValueString   PropertyKey = "VALUE_STRING"
	PropValueLong     PropertyKey = "VALUE_LONG"
	PropValueDouble   PropertyKey = "VALUE_DOUBLE"
	PropValueBoolean  PropertyKey = "VALUE_BOOLEAN"
	PropValueDate     PropertyKey = "VALUE_DATE"
)

// EdgePropertyKey is a reserved edge property key.
type EdgePropertyKey string

const (
	EdgePropRoleTypeID     EdgePropertyKey = "ROLE_TYPE_ID"
	EdgePropRelationTypeID EdgePropertyKey = "RELATION_TYPE_ID"
)
