package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendz/NL2SQL/internal/schema"
)

func TestParseAssociations(t *testing.T) {
	p := NewModelParser()
	decls, err := p.ParseAssociations(context.Background(), "/models/associations.js", []byte(`
const db = require('./index');

module.exports = () => {
  db.User.hasMany(db.Order, { foreignKey: 'user_id', as: 'orders' });
  db.Order.belongsTo(db.User, { foreignKey: 'user_id' });
  db['Order'].belongsTo(db.Payment);
  notARelation(db.User);
};
`))
	require.NoError(t, err)

	require.Len(t, decls, 2)
	assert.Equal(t, []schema.Association{
		{Kind: schema.HasMany, Target: "Order", ForeignKey: "user_id", Alias: "orders"},
	}, decls["User"])
	assert.Equal(t, []schema.Association{
		{Kind: schema.BelongsTo, Target: "User", ForeignKey: "user_id"},
		{Kind: schema.BelongsTo, Target: "Payment"},
	}, decls["Order"])
}

func TestParseAssociationsPropertyChains(t *testing.T) {
	p := NewModelParser()
	decls, err := p.ParseAssociations(context.Background(), "/models/associations.js", []byte(`
models.catalog.Product.hasMany(models.catalog.Review);
`))
	require.NoError(t, err)

	require.Contains(t, decls, "Product", "only the final identifier of the chain matters")
	assert.Equal(t, "Review", decls["Product"][0].Target)
}

func TestParseAssociationsMalformed(t *testing.T) {
	p := NewModelParser()
	_, err := p.ParseAssociations(context.Background(), "/models/associations.js", []byte(`
db.User.hasMany(db.Order, {
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestParseAssociationsObjectForeignKey(t *testing.T) {
	p := NewModelParser()
	decls, err := p.ParseAssociations(context.Background(), "/models/associations.js", []byte(`
db.User.hasMany(db.Order, { foreignKey: { name: 'user_id', allowNull: false } });
`))
	require.NoError(t, err)
	require.Len(t, decls["User"], 1)
	assert.Equal(t, "user_id", decls["User"][0].ForeignKey,
		"object form resolves to its name property")
}

func TestMergeAssociations(t *testing.T) {
	entities := []schema.Entity{
		{Name: "User", Associations: []schema.Association{
			{Kind: schema.HasMany, Target: "Order", Alias: "orders", ForeignKey: "user_id"},
		}},
		{Name: "Order"},
	}
	decls := map[string][]schema.Association{
		"User": {
			// same key as the in-file declaration: dropped
			{Kind: schema.HasMany, Target: "Order", Alias: "orders"},
			// new key: appended
			{Kind: schema.BelongsToMany, Target: "Team", Alias: "teams"},
		},
		"Order": {
			{Kind: schema.BelongsTo, Target: "User"},
		},
		"Ghost": {
			{Kind: schema.HasOne, Target: "Nothing"},
		},
	}

	mergeAssociations(entities, decls)

	require.Len(t, entities[0].Associations, 2)
	assert.Equal(t, "user_id", entities[0].Associations[0].ForeignKey,
		"the in-file declaration survives untouched")
	assert.Equal(t, schema.BelongsToMany, entities[0].Associations[1].Kind)

	require.Len(t, entities[1].Associations, 1)
	assert.Equal(t, "User", entities[1].Associations[0].Target)
}
