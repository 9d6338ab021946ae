package schema

import (
	"testing"

	"github.com/openviking/vikingdb/pkg/vdberrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionMetaValidate(t *testing.T) {
	t.Run("valid schema passes", func(t *testing.T) {
		m := CollectionMeta{
			Name: "docs",
			Fields: []Field{
				{Name: "id", Type: TypeString, IsPrimaryKey: true},
				{Name: "embedding", Type: TypeVector, Dim: 8},
				{Name: "keywords", Type: TypeSparseVector},
				{Name: "created_at", Type: TypeDateTime},
			},
		}
		require.NoError(t, m.Validate())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		m := CollectionMeta{Fields: []Field{{Name: "id", Type: TypeString}}}
		err := m.Validate()
		require.Error(t, err)
		kind, ok := vdberrors.KindOf(err)
		require.True(t, ok)
		assert.Equal(t, vdberrors.SchemaInvalid, kind)
	})

	t.Run("rejects duplicate field names", func(t *testing.T) {
		m := CollectionMeta{
			Name: "docs",
			Fields: []Field{
				{Name: "id", Type: TypeString},
				{Name: "id", Type: TypeInt64},
			},
		}
		require.Error(t, m.Validate())
	})

	t.Run("rejects more than one primary key", func(t *testing.T) {
		m := CollectionMeta{
			Name: "docs",
			Fields: []Field{
				{Name: "a", Type: TypeString, IsPrimaryKey: true},
				{Name: "b", Type: TypeString, IsPrimaryKey: true},
			},
		}
		require.Error(t, m.Validate())
	})

	t.Run("rejects more than one dense vector field", func(t *testing.T) {
		m := CollectionMeta{
			Name: "docs",
			Fields: []Field{
				{Name: "v1", Type: TypeVector, Dim: 4},
				{Name: "v2", Type: TypeVector, Dim: 4},
			},
		}
		require.Error(t, m.Validate())
	})

	t.Run("rejects vector field with non-positive dim", func(t *testing.T) {
		m := CollectionMeta{
			Name:   "docs",
			Fields: []Field{{Name: "v", Type: TypeVector, Dim: 0}},
		}
		require.Error(t, m.Validate())
	})
}

func TestFieldLookups(t *testing.T) {
	m := CollectionMeta{
		Name: "docs",
		Fields: []Field{
			{Name: "id", Type: TypeString, IsPrimaryKey: true},
			{Name: "embedding", Type: TypeVector, Dim: 4},
			{Name: "keywords", Type: TypeSparseVector},
			{Name: "title", Type: TypeString},
		},
	}

	pk, ok := m.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)

	dense, ok := m.DenseVectorField()
	require.True(t, ok)
	assert.Equal(t, "embedding", dense.Name)

	sparse, ok := m.SparseVectorField()
	require.True(t, ok)
	assert.Equal(t, "keywords", sparse.Name)

	_, ok = m.FieldByName("nonexistent")
	assert.False(t, ok)

	names := m.ScalarFieldNames()
	assert.ElementsMatch(t, []string{"id", "title"}, names)
}
