package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaTypes_DenseIDs(t *testing.T) {
	for i, mt := range MetaTypes {
		assert.Equal(t, int64(i+1), mt.ID, "meta type %q", mt.Label)
	}
	assert.Equal(t, int64(9), FirstUserTypeID)
}

func TestIsMetaLabel(t *testing.T) {
	assert.True(t, IsMetaLabel("concept"))
	assert.True(t, IsMetaLabel("constraint-rule"))
	assert.False(t, IsMetaLabel("person"))
}

func TestInstanceKind(t *testing.T) {
	tests := []struct {
		kind     BaseKind
		want     BaseKind
		hasValue bool
	}{
		{KindEntityType, KindEntity, true},
		{KindRelationType, KindRelation, true},
		{KindResourceType, KindResource, true},
		{KindRuleType, KindRule, true},
		{KindRoleType, "", false},
		{KindType, "", false},
	}
	for _, tt := range tests {
		got, ok := tt.kind.InstanceKind()
		assert.Equal(t, tt.hasValue, ok, "%s", tt.kind)
		assert.Equal(t, tt.want, got, "%s", tt.kind)
	}
}

func TestDataType_EncodeDecodeRoundTrip(t *testing.T) {
	date := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name     string
		datatype DataType
		value    any
		decoded  any
	}{
		{"string", DataTypeString, "alice", "alice"},
		{"long from int", DataTypeLong, 42, int64(42)},
		{"long from int64", DataTypeLong, int64(-7), int64(-7)},
		{"double", DataTypeDouble, 2.5, 2.5},
		{"boolean", DataTypeBoolean, true, true},
		{"date", DataTypeDate, date, date},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := tt.datatype.EncodeValue(tt.value)
			require.NoError(t, err)

			got, err := tt.datatype.DecodeValue(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.decoded, got)
		})
	}
}

func TestDataType_EncodeRejectsMismatch(t *testing.T) {
	_, err := DataTypeLong.EncodeValue("not a number")
	assert.Error(t, err)
	_, err = DataTypeDate.EncodeValue(5)
	assert.Error(t, err)
}

func TestDataTypeOf(t *testing.T) {
	dt, ok := DataTypeOf("x")
	require.True(t, ok)
	assert.Equal(t, DataTypeString, dt)

	dt, ok = DataTypeOf(int64(1))
	require.True(t, ok)
	assert.Equal(t, DataTypeLong, dt)

	_, ok = DataTypeOf([]string{"unsupported"})
	assert.False(t, ok)
}

func TestImplicitLabels(t *testing.T) {
	assert.Equal(t, "has-name", ImplicitRelationLabel("name"))
	assert.Equal(t, "has-name-owner", ImplicitOwnerRoleLabel("name"))
	assert.Equal(t, "has-name-value", ImplicitValueRoleLabel("name"))
}
