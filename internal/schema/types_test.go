package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssociationKey(t *testing.T) {
	t.Run("same kind, target, alias collide", func(t *testing.T) {
		a := Association{Kind: BelongsTo, Target: "Order", Alias: "order"}
		b := Association{Kind: BelongsTo, Target: "Order", Alias: "order", ForeignKey: "order_id"}
		assert.Equal(t, a.Key(), b.Key(), "foreign key is not part of the identity")
	})

	t.Run("alias distinguishes declarations", func(t *testing.T) {
		a := Association{Kind: HasMany, Target: "Order"}
		b := Association{Kind: HasMany, Target: "Order", Alias: "recentOrders"}
		assert.NotEqual(t, a.Key(), b.Key())
	})
}

func TestAddAssociation(t *testing.T) {
	e := Entity{Name: "User"}

	require.True(t, e.AddAssociation(Association{Kind: HasMany, Target: "Order"}))
	require.False(t, e.AddAssociation(Association{Kind: HasMany, Target: "Order"}),
		"same-key declaration must not be appended twice")
	require.True(t, e.AddAssociation(Association{Kind: HasMany, Target: "Order", Alias: "orders"}))

	assert.Len(t, e.Associations, 2)
}

func TestValueTagging(t *testing.T) {
	lit := Literal("user")
	raw := Raw("  DataTypes.NOW  ")

	assert.True(t, lit.IsLiteral())
	assert.False(t, raw.IsLiteral())
	assert.Equal(t, "DataTypes.NOW", raw.Text, "raw source is stripped")
}

func TestSnapshot(t *testing.T) {
	snap := NewSnapshot([]Entity{
		{Name: "User", TableName: "users"},
		{Name: "Order", TableName: "orders"},
	})

	t.Run("lookup by name", func(t *testing.T) {
		e, ok := snap.Entity("Order")
		require.True(t, ok)
		assert.Equal(t, "orders", e.TableName)

		_, ok = snap.Entity("Missing")
		assert.False(t, ok)
	})

	t.Run("names preserve order", func(t *testing.T) {
		assert.Equal(t, []string{"User", "Order"}, snap.Names())
	})

	t.Run("description is generated", func(t *testing.T) {
		assert.Contains(t, snap.Description, "2 tables")
		assert.Contains(t, snap.Description, "Table users (model User)")
	})
}
