package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/lattice-kb/lattice.graph/domain/schema"
	"github.com/lattice-kb/lattice.graph/internal/substrate"
	"github.com/lattice-kb/lattice.graph/pkg/apperror"
	"github.com/lattice-kb/lattice.graph/pkg/commitlog"
)

// Transaction is the public mutation surface. There is no ambient,
// thread-bound transaction: callers hold an explicit value, and it must
// not be shared across goroutines.
type Transaction struct {
	graph *Graph
	kind  TxKind
	sub   substrate.Tx
	log   *txLog

	// createdInstances feeds commit-time validation.
	createdInstances []*Instance

	closed       bool
	closedReason string
}

// Kind returns the transaction mode.
func (t *Transaction) Kind() TxKind { return t.kind }

// ---------------------------------------------------------------- types

// PutEntityType is the idempotent creator for entity types.
func (t *Transaction) PutEntityType(ctx context.Context, label string) (*Type, error) {
	return t.putType(ctx, label, schema.KindEntityType, "", false)
}

// PutRelationType is the idempotent creator for relation types.
func (t *Transaction) PutRelationType(ctx context.Context, label string) (*Type, error) {
	return t.putType(ctx, label, schema.KindRelationType, "", false)
}

// PutRoleType is the idempotent creator for role types.
func (t *Transaction) PutRoleType(ctx context.Context, label string) (*Type, error) {
	return t.putType(ctx, label, schema.KindRoleType, "", false)
}

// PutRuleType is the idempotent creator for rule types.
func (t *Transaction) PutRuleType(ctx context.Context, label string) (*Type, error) {
	return t.putType(ctx, label, schema.KindRuleType, "", false)
}

// PutResourceType is the idempotent creator for resource types. The
// datatype is part of the type's identity and immutable afterwards.
func (t *Transaction) PutResourceType(ctx context.Context, label string, datatype schema.DataType) (*Type, error) {
	if !datatype.Valid() {
		return nil, apperror.ErrInvalidDatatype.WithMessagef("datatype %q is not supported", datatype)
	}
	return t.putType(ctx, label, schema.KindResourceType, datatype, false)
}

func (t *Transaction) putRelationTypeImplicit(ctx context.Context, label string) (*Type, error) {
	return t.putType(ctx, label, schema.KindRelationType, "", true)
}

func (t *Transaction) putRoleTypeImplicit(ctx context.Context, label string) (*Type, error) {
	return t.putType(ctx, label, schema.KindRoleType, "", true)
}

func (t *Transaction) putType(ctx context.Context, label string, kind schema.BaseKind, datatype schema.DataType, implicit bool) (*Type, error) {
	if err := t.checkMutation(); err != nil {
		return nil, err
	}
	if schema.IsMetaLabel(label) {
		return nil, apperror.ErrMetaImmutable.WithMessagef("label %q belongs to the meta ontology", label)
	}

	existing, err := t.getTypeAnyKind(ctx, label)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.kind != kind {
			return nil, apperror.ErrTypeConflict.WithMessagef("label %q already names a %s", label, existing.kind)
		}
		if kind == schema.KindResourceType && existing.DataType != datatype {
			return nil, apperror.ErrTypeConflict.WithMessagef("resource type %q is declared %s, not %s", label, existing.DataType, datatype)
		}
		return existing, nil
	}

	typeID, err := t.nextTypeID(ctx)
	if err != nil {
		return nil, err
	}

	v, err := t.addTypeVertex(ctx, typeID, label, kind)
	if err != nil {
		return nil, err
	}
	if kind == schema.KindResourceType {
		if err := t.setProps(ctx, v, schema.PropDataType, string(datatype)); err != nil {
			return nil, err
		}
	}
	if implicit {
		if err := t.setProps(ctx, v, schema.PropIsImplicit, "true"); err != nil {
			return nil, err
		}
	}

	typ, err := buildType(v)
	if err != nil {
		return nil, err
	}

	// Subtype of the matching meta root.
	if parent, ok := t.metaParent(kind); ok {
		parentType, err := t.GetType(ctx, parent.Label)
		if err != nil {
			return nil, err
		}
		if parentType != nil {
			if _, err := t.addEdge(ctx, typ.ID(), parentType.ID(), schema.EdgeSub); err != nil {
				return nil, err
			}
		}
	}

	// Every non-meta type carries at least one shard.
	if err := t.createShard(ctx, typ); err != nil {
		return nil, err
	}

	t.log.cacheType(typ)
	typesCreated.Inc()
	return typ, nil
}

func isRuleSubclass(typ *Type) bool {
	return typ.kind == schema.KindRuleType &&
		(typ.Label == schema.MetaInferenceRule.Label || typ.Label == schema.MetaConstraintRule.Label)
}

func (t *Transaction) metaParent(kind schema.BaseKind) (schema.MetaType, bool) {
	switch kind {
	case schema.KindEntityType:
		return schema.MetaEntityType, true
	case schema.KindRelationType:
		return schema.MetaRelationType, true
	case schema.KindResourceType:
		return schema.MetaResourceType, true
	case schema.KindRoleType:
		return schema.MetaRoleType, true
	case schema.KindRuleType:
		return schema.MetaRuleType, true
	}
	return schema.MetaType{}, false
}

// nextTypeID increments the monotonic counter stored on the meta concept
// vertex. Substrate conflicts here are transient, so the read-modify-write
// retries with jitter before surfacing a failure.
func (t *Transaction) nextTypeID(ctx context.Context) (int64, error) {
	meta, err := t.GetType(ctx, schema.MetaConcept.Label)
	if err != nil {
		return 0, err
	}
	if meta == nil {
		return 0, apperror.ErrSubstrate.WithMessage("corrupt graph: meta concept is missing")
	}

	var next int64
	err = t.withConflictRetry(5, func() error {
		v, err := t.vertex(ctx, substrate.VertexID(meta.ID()))
		if err != nil {
			return err
		}
		if v == nil {
			return apperror.ErrSubstrate.WithMessage("corrupt graph: meta concept vertex is missing")
		}

		current := parseInt(v.Prop(string(schema.PropInstanceCount)))
		if current == 0 {
			current = schema.FirstUserTypeID - 1
		}
		next = current + 1
		return t.setProps(ctx, v, schema.PropInstanceCount, formatInt(next))
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (t *Transaction) withConflictRetry(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !errors.Is(err, substrate.ErrConflict) {
			return err
		}
		time.Sleep(time.Duration(rand.Int63n(int64(5*time.Millisecond))) + time.Millisecond)
	}
	return substrateErr(err)
}

// GetType returns the type named label, or nil when absent.
func (t *Transaction) GetType(ctx context.Context, label string) (*Type, error) {
	return t.getTypeAnyKind(ctx, label)
}

// GetTypeOfKind returns the type named label when it has the wanted kind,
// nil otherwise.
func (t *Transaction) GetTypeOfKind(ctx context.Context, label string, kind schema.BaseKind) (*Type, error) {
	typ, err := t.getTypeAnyKind(ctx, label)
	if err != nil {
		return nil, err
	}
	if typ == nil || typ.kind != kind {
		return nil, nil
	}
	return typ, nil
}

func (t *Transaction) getTypeAnyKind(ctx context.Context, label string) (*Type, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if typ, ok := t.log.typeByLabel(label); ok {
		ontologyCacheHits.Inc()
		return typ, nil
	}
	ontologyCacheMisses.Inc()

	typ, err := t.typeByLabelIndex(ctx, label)
	if err != nil || typ == nil {
		return nil, err
	}
	t.log.cacheType(typ)
	return typ, nil
}

// GetConcept resolves a concept by id, or nil when absent.
func (t *Transaction) GetConcept(ctx context.Context, id ConceptID) (Concept, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if c, ok := t.log.conceptByID(id); ok {
		return c, nil
	}
	c, err := t.conceptByProperty(ctx, schema.PropID, string(id), t.bypassDuplicates())
	if err != nil || c == nil {
		return nil, err
	}
	t.log.cacheConcept(c)
	return c, nil
}

// getConceptRawID looks a concept up by vertex id directly, skipping the
// ID index. Reconciliation uses this when the index cannot be trusted.
func (t *Transaction) getConceptRawID(ctx context.Context, id ConceptID) (Concept, error) {
	v, err := t.vertex(ctx, substrate.VertexID(id))
	if err != nil || v == nil {
		return nil, err
	}
	return buildConcept(v)
}

// GetResourcesByValue returns every resource holding the given value,
// across resource types.
func (t *Transaction) GetResourcesByValue(ctx context.Context, value any) ([]*Instance, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	dt, ok := schema.DataTypeOf(value)
	if !ok {
		return nil, apperror.ErrInvalidDatatype.WithMessagef("values of type %T are not supported", value)
	}
	encoded, err := dt.EncodeValue(value)
	if err != nil {
		return nil, apperror.ErrInvalidDatatype.WithInternal(err)
	}

	concepts, err := t.conceptsByProperty(ctx, dt.ValueProperty(), encoded)
	if err != nil {
		return nil, err
	}
	resources := make([]*Instance, 0, len(concepts))
	for _, c := range concepts {
		if inst, ok := c.(*Instance); ok && inst.IsResource() {
			resources = append(resources, inst)
		}
	}
	return resources, nil
}

// ------------------------------------------------------------ instances

// AddEntity creates a fresh entity of the given entity type.
func (t *Transaction) AddEntity(ctx context.Context, entityType *Type) (*Instance, error) {
	return t.addInstance(ctx, entityType, schema.KindEntityType)
}

// AddRule creates a fresh rule of the given rule type.
func (t *Transaction) AddRule(ctx context.Context, ruleType *Type) (*Instance, error) {
	return t.addInstance(ctx, ruleType, schema.KindRuleType)
}

func (t *Transaction) addInstance(ctx context.Context, typ *Type, wantKind schema.BaseKind) (*Instance, error) {
	if err := t.checkMutation(); err != nil {
		return nil, err
	}
	if typ == nil || typ.kind != wantKind {
		return nil, apperror.ErrTypeConflict.WithMessagef("expected a %s", wantKind)
	}
	// The two rule subclasses are the only meta types that take direct
	// instances; they carry shards from bootstrap for exactly that.
	if typ.IsMeta() && !isRuleSubclass(typ) {
		return nil, apperror.ErrMetaImmutable.WithMessagef("meta type %q cannot have direct instances", typ.Label)
	}

	instKind, _ := typ.kind.InstanceKind()
	v, err := t.addVertex(ctx, instKind)
	if err != nil {
		return nil, err
	}
	if err := t.setProps(ctx, v,
		schema.PropTypeLabel, typ.Label,
		schema.PropTypeID, formatInt(typ.TypeID),
	); err != nil {
		return nil, err
	}

	// ISA connects the instance to the type's current shard.
	if typ.CurrentShard == "" {
		return nil, apperror.ErrSubstrate.WithMessagef("corrupt graph: type %q has no shard", typ.Label)
	}
	if _, err := t.addEdge(ctx, ConceptID(v.ID), ConceptID(typ.CurrentShard), schema.EdgeIsa); err != nil {
		return nil, err
	}

	inst, err := buildInstance(v, instKind)
	if err != nil {
		return nil, err
	}
	t.log.cacheConcept(inst)
	t.log.addInstanceCount(typ.Label, 1)
	t.createdInstances = append(t.createdInstances, inst)
	return inst, nil
}

// PutResource returns the resource of resourceType holding value,
// creating it when the INDEX lookup finds no such resource. Duplicates
// built by concurrent transactions converge through post-processing.
func (t *Transaction) PutResource(ctx context.Context, resourceType *Type, value any) (*Instance, error) {
	if err := t.checkMutation(); err != nil {
		return nil, err
	}
	if resourceType == nil || resourceType.kind != schema.KindResourceType {
		return nil, apperror.ErrTypeConflict.WithMessage("expected a RESOURCE_TYPE")
	}
	if resourceType.IsMeta() {
		return nil, apperror.ErrMetaImmutable.WithMessagef("meta type %q cannot have direct instances", resourceType.Label)
	}

	dt, ok := schema.DataTypeOf(value)
	if !ok {
		return nil, apperror.ErrInvalidDatatype.WithMessagef("values of type %T are not supported", value)
	}
	if dt != resourceType.DataType {
		return nil, apperror.ErrImmutableValue.WithMessagef(
			"resource type %q is declared %s; a %s value cannot change that", resourceType.Label, resourceType.DataType, dt)
	}
	encoded, err := dt.EncodeValue(value)
	if err != nil {
		return nil, apperror.ErrInvalidDatatype.WithInternal(err)
	}

	index := resourceIndex(resourceType.TypeID, encoded)
	existing, err := t.conceptByProperty(ctx, schema.PropIndex, index, true)
	if err != nil {
		return nil, err
	}
	if inst, ok := existing.(*Instance); ok && inst.IsResource() {
		return inst, nil
	}

	inst, err := t.addInstance(ctx, resourceType, schema.KindResourceType)
	if err != nil {
		return nil, err
	}
	v, err := t.vertex(ctx, substrate.VertexID(inst.ID()))
	if err != nil {
		return nil, err
	}
	if err := t.setProps(ctx, v,
		dt.ValueProperty(), encoded,
		schema.PropIndex, index,
	); err != nil {
		return nil, err
	}
	inst.DataType = dt
	inst.Value = value

	t.log.trackResource(index, inst.ID())
	return inst, nil
}

// AddRelation returns the relation of relationType over the given role
// map, creating it if no semantically-equivalent relation exists yet in
// this transaction or the index.
func (t *Transaction) AddRelation(ctx context.Context, relationType *Type, roles RoleMap) (*Instance, error) {
	if err := t.checkMutation(); err != nil {
		return nil, err
	}
	if relationType == nil || relationType.kind != schema.KindRelationType {
		return nil, apperror.ErrTypeConflict.WithMessage("expected a RELATION_TYPE")
	}

	index := relationIndex(relationType.TypeID, rawRoleMap(roles))

	if rel, ok := t.log.relationByIndex(index); ok {
		return rel, nil
	}
	existing, err := t.conceptByProperty(ctx, schema.PropIndex, index, true)
	if err != nil {
		return nil, err
	}
	if inst, ok := existing.(*Instance); ok && inst.IsRelation() {
		t.log.newRelations[index] = inst
		return inst, nil
	}

	rel, err := t.addInstance(ctx, relationType, schema.KindRelationType)
	if err != nil {
		return nil, err
	}
	v, err := t.vertex(ctx, substrate.VertexID(rel.ID()))
	if err != nil {
		return nil, err
	}
	if err := t.setProps(ctx, v, schema.PropIndex, index); err != nil {
		return nil, err
	}

	for role, players := range roles {
		for _, player := range players {
			if err := t.putCasting(ctx, rel, relationType, role, player); err != nil {
				return nil, err
			}
		}
	}

	t.log.newRelations[index] = rel
	t.log.trackRelation(index, rel)
	return rel, nil
}

// DeclareRole adds roleType to the relation type's role list.
func (t *Transaction) DeclareRole(ctx context.Context, relationType, roleType *Type) error {
	if err := t.checkMutation(); err != nil {
		return err
	}
	if relationType.kind != schema.KindRelationType || roleType.kind != schema.KindRoleType {
		return apperror.ErrTypeConflict.WithMessage("DeclareRole wants a RELATION_TYPE and a ROLE_TYPE")
	}
	if relationType.IsMeta() || roleType.IsMeta() {
		return apperror.ErrMetaImmutable
	}
	if relationType.DeclaresRole(roleType.TypeID) {
		return nil
	}
	if _, err := t.addEdge(ctx, relationType.ID(), roleType.ID(), schema.EdgeHasRole); err != nil {
		return err
	}
	relationType.Roles = append(relationType.Roles, roleType.TypeID)
	t.log.cacheType(relationType)
	return nil
}

// ----------------------------------------------------------- ownership

// DeclareResource declares at schema time that resources of resourceType
// can be owned, creating the implicit ownership relation and role types.
// Declaring ahead of loading keeps concurrent Attach calls off the
// type-id counter.
func (t *Transaction) DeclareResource(ctx context.Context, resourceType *Type) (*Type, *Type, *Type, error) {
	if resourceType == nil || resourceType.Kind() != schema.KindResourceType {
		return nil, nil, nil, apperror.ErrTypeConflict.WithMessage("DeclareResource wants a RESOURCE_TYPE")
	}

	relType, err := t.putRelationTypeImplicit(ctx, schema.ImplicitRelationLabel(resourceType.Label))
	if err != nil {
		return nil, nil, nil, err
	}
	ownerRole, err := t.putRoleTypeImplicit(ctx, schema.ImplicitOwnerRoleLabel(resourceType.Label))
	if err != nil {
		return nil, nil, nil, err
	}
	valueRole, err := t.putRoleTypeImplicit(ctx, schema.ImplicitValueRoleLabel(resourceType.Label))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := t.DeclareRole(ctx, relType, ownerRole); err != nil {
		return nil, nil, nil, err
	}
	if err := t.DeclareRole(ctx, relType, valueRole); err != nil {
		return nil, nil, nil, err
	}
	return relType, ownerRole, valueRole, nil
}

// Attach links a resource to an owner through the implicit ownership
// relation for the resource's type.
func (t *Transaction) Attach(ctx context.Context, owner *Instance, resource *Instance) (*Instance, error) {
	if err := t.checkMutation(); err != nil {
		return nil, err
	}
	if !resource.IsResource() {
		return nil, apperror.ErrTypeConflict.WithMessage("Attach wants a resource")
	}

	resourceType, err := t.GetType(ctx, resource.TypeLabel)
	if err != nil {
		return nil, err
	}
	if resourceType == nil {
		return nil, apperror.ErrSubstrate.WithMessagef("corrupt graph: resource type %q cannot be resolved", resource.TypeLabel)
	}
	relType, ownerRole, valueRole, err := t.DeclareResource(ctx, resourceType)
	if err != nil {
		return nil, err
	}

	return t.AddRelation(ctx, relType, RoleMap{
		ownerRole: {owner},
		valueRole: {resource},
	})
}

// Relations returns the relations an instance participates in.
func (t *Transaction) Relations(ctx context.Context, inst *Instance) ([]*Instance, error) {
	casts, err := t.castingsWithPlayer(ctx, inst.ID())
	if err != nil {
		return nil, err
	}
	seen := make(map[ConceptID]bool)
	var out []*Instance
	for _, cast := range casts {
		rels, err := t.relationsOf(ctx, cast.id)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if seen[rel.ID()] {
				continue
			}
			seen[rel.ID()] = true
			out = append(out, rel)
		}
	}
	return out, nil
}

// Resources returns the resources attached to owner, optionally filtered
// by resource type labels.
func (t *Transaction) Resources(ctx context.Context, owner *Instance, typeLabels ...string) ([]*Instance, error) {
	neighbours, err := t.shortcutNeighbours(ctx, owner)
	if err != nil {
		return nil, err
	}
	filter := make(map[string]bool, len(typeLabels))
	for _, l := range typeLabels {
		filter[l] = true
	}

	var out []*Instance
	for _, n := range neighbours {
		if !n.IsResource() {
			continue
		}
		if len(filter) > 0 && !filter[n.TypeLabel] {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Owners returns the instances a resource is attached to.
func (t *Transaction) Owners(ctx context.Context, resource *Instance) ([]*Instance, error) {
	neighbours, err := t.shortcutNeighbours(ctx, resource)
	if err != nil {
		return nil, err
	}
	var out []*Instance
	for _, n := range neighbours {
		if n.IsResource() && n.ID() == resource.ID() {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// shortcutNeighbours walks SHORTCUT edges two hops: instance -> relation
// -> co-players.
func (t *Transaction) shortcutNeighbours(ctx context.Context, inst *Instance) ([]*Instance, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	incoming, err := t.inEdges(ctx, inst.ID(), schema.EdgeShortcut)
	if err != nil {
		return nil, err
	}

	seen := make(map[ConceptID]bool)
	var out []*Instance
	for _, edge := range incoming {
		outgoing, err := t.outEdges(ctx, ConceptID(edge.From), schema.EdgeShortcut)
		if err != nil {
			return nil, err
		}
		for _, oe := range outgoing {
			if oe.To == substrate.VertexID(inst.ID()) || seen[ConceptID(oe.To)] {
				continue
			}
			seen[ConceptID(oe.To)] = true
			c, err := t.getConceptRawID(ctx, ConceptID(oe.To))
			if err != nil {
				return nil, err
			}
			if other, ok := c.(*Instance); ok {
				out = append(out, other)
			}
		}
	}
	return out, nil
}

// --------------------------------------------------------------- commit

// Commit validates the touched set, flushes the substrate transaction,
// promotes accepted type entries into the shared ontology cache, and
// returns the commit-log payload when post-processing has work to do.
func (t *Transaction) Commit(ctx context.Context) (*commitlog.Payload, error) {
	return t.commit(ctx, true)
}

// CommitNoLogs validates and flushes like Commit but never submits the
// payload to the engine sink. Post-processing commits its own merges this
// way so they cannot re-enter the commit-log pipeline.
func (t *Transaction) CommitNoLogs(ctx context.Context) (*commitlog.Payload, error) {
	return t.commit(ctx, false)
}

func (t *Transaction) commit(ctx context.Context, submitLogs bool) (*commitlog.Payload, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	if failures := t.validate(ctx); len(failures) > 0 {
		validationFailures.Add(float64(len(failures)))
		_ = t.sub.Rollback()
		t.close("transaction rolled back on validation failure")
		return nil, validationError(failures)
	}

	payload := t.log.buildCommitLog()
	submit := t.log.submissionNeeded() && t.graph.keyspace != schema.SystemKeyspace

	if err := t.sub.Commit(ctx); err != nil {
		t.close("transaction failed to commit")
		if errors.Is(err, substrate.ErrConflict) {
			return nil, apperror.ErrSubstrate.WithMessage("commit lost a substrate conflict; retry the transaction").WithInternal(err)
		}
		return nil, substrateErr(err)
	}

	t.graph.promote(t.log)
	t.close("transaction committed")
	commitsTotal.WithLabelValues(t.kind.String()).Inc()

	if !submit {
		return nil, nil
	}
	if !submitLogs {
		return payload, nil
	}

	if err := t.graph.sink.Submit(ctx, t.graph.keyspace, payload); err != nil {
		// The commit is already durable; post-processing will catch up on
		// the next submission for this keyspace.
		t.graph.log.Warn("commit log submission failed",
			slog.String("tx_kind", t.kind.String()),
			slog.Any("error", err))
	}
	return payload, nil
}

// commitInternal flushes without emitting commit logs. Bootstrap and
// shard maintenance use it.
func (t *Transaction) commitInternal(ctx context.Context) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.sub.Commit(ctx); err != nil {
		t.close("transaction failed to commit")
		if errors.Is(err, substrate.ErrConflict) {
			return apperror.ErrSubstrate.WithMessage("commit lost a substrate conflict; retry the transaction").WithInternal(err)
		}
		return substrateErr(err)
	}
	t.graph.promote(t.log)
	t.close("transaction committed")
	return nil
}

// Abort discards the transaction log and rolls back the substrate
// transaction. Safe to call after Commit.
func (t *Transaction) Abort() error {
	if t.closed {
		return nil
	}
	err := t.sub.Rollback()
	// A read-only transaction mutated nothing, so its freshly-resolved
	// types are safe to share.
	if t.kind == Read {
		t.graph.promote(t.log)
	}
	t.close("transaction aborted")
	return err
}

// Close is an alias for Abort, for scoped-acquire call sites.
func (t *Transaction) Close() error { return t.Abort() }

func (t *Transaction) close(reason string) {
	t.closed = true
	t.closedReason = fmt.Sprintf("%s on keyspace %q", reason, t.graph.keyspace)
	t.log = newTxLog(nil)
	t.createdInstances = nil
}

// setInstanceCount writes a type's instance counter, keeping the
// transaction-local clone in sync.
func (t *Transaction) setInstanceCount(ctx context.Context, typ *Type, count int64) error {
	v, err := t.vertex(ctx, substrate.VertexID(typ.ID()))
	if err != nil {
		return err
	}
	if v == nil {
		return apperror.ErrSubstrate.WithMessagef("corrupt graph: type %q vertex is missing", typ.Label)
	}
	if err := t.setProps(ctx, v, schema.PropInstanceCount, formatInt(count)); err != nil {
		return err
	}
	typ.InstanceCount = count
	t.log.cacheType(typ)
	return nil
}

// createShard interposes a fresh shard between typ and its future
// instances and repoints the type's current-shard marker.
func (t *Transaction) createShard(ctx context.Context, typ *Type) error {
	v, err := t.addVertex(ctx, typ.kind)
	if err != nil {
		return err
	}
	if err := t.setProps(ctx, v, schema.PropIsShard, "true"); err != nil {
		return err
	}
	if _, err := t.addEdge(ctx, ConceptID(v.ID), typ.ID(), schema.EdgeShard); err != nil {
		return err
	}

	typeVertex, err := t.vertex(ctx, substrate.VertexID(typ.ID()))
	if err != nil {
		return err
	}
	if typeVertex == nil {
		return apperror.ErrSubstrate.WithMessagef("corrupt graph: type %q vertex is missing", typ.Label)
	}
	if err := t.setProps(ctx, typeVertex, schema.PropCurrentShard, string(v.ID)); err != nil {
		return err
	}

	typ.CurrentShard = v.ID
	t.log.cacheType(typ)
	shardsCreated.Inc()
	return nil
}

// ShardCount reports how many shards a type has. Exposed for operational
// tooling.
func (t *Transaction) ShardCount(ctx context.Context, typ *Type) (int, error) {
	edges, err := t.inEdges(ctx, typ.ID(), schema.EdgeShard)
	if err != nil {
		return 0, err
	}
	return len(edges), nil
}

func validationError(failures []string) error {
	return apperror.ErrValidation.
		WithMessagef("%d validation failure(s)", len(failures)).
		WithDetails(map[string]any{"failures": failures})
}
