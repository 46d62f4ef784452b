package extract

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendz/NL2SQL/internal/schema"
)

func parseModel(t *testing.T, filename, src string) (*schema.Entity, error) {
	t.Helper()
	p := NewModelParser()
	return p.ParseModel(context.Background(), "/models/"+filename, []byte(src))
}

func mustParseModel(t *testing.T, filename, src string) *schema.Entity {
	t.Helper()
	entity, err := parseModel(t, filename, src)
	require.NoError(t, err)
	require.NotNil(t, entity)
	return entity
}

func fieldByName(t *testing.T, e *schema.Entity, name string) *schema.Field {
	t.Helper()
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	t.Fatalf("field %s not found on %s", name, e.Name)
	return nil
}

func TestParseModelDefine(t *testing.T) {
	entity := mustParseModel(t, "User.js", `
const { DataTypes } = require('sequelize');

module.exports = (sequelize) => {
  const User = sequelize.define('app_users', {
    id: { type: DataTypes.INTEGER, primaryKey: true, allowNull: false },
    email: { type: DataTypes.STRING, unique: true },
    role: { type: DataTypes.ENUM, values: ['admin', 'member'] },
    status: DataTypes.STRING,
    team_id: { type: DataTypes.INTEGER, references: { model: 'teams', key: 'id' } },
    created_at: { type: DataTypes.DATE, defaultValue: DataTypes.NOW },
  }, { tableName: 'users' });

  User.belongsTo(Team, { foreignKey: 'team_id', as: 'team' });
  return User;
};
`)

	assert.Equal(t, "User", entity.Name, "entity name comes from the file name")
	assert.Equal(t, "users", entity.TableName, "tableName option wins over the define argument")
	require.Len(t, entity.Fields, 6)

	id := fieldByName(t, entity, "id")
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.Nullable)
	assert.Equal(t, "DataTypes.INTEGER", id.Type.Text)

	email := fieldByName(t, entity, "email")
	assert.True(t, email.Unique)
	assert.True(t, email.Nullable, "nullable is the default")

	role := fieldByName(t, entity, "role")
	assert.Equal(t, []string{"admin", "member"}, role.EnumValues)

	status := fieldByName(t, entity, "status")
	assert.Equal(t, "DataTypes.STRING", status.Type.Text, "shorthand value is the type expression")

	teamID := fieldByName(t, entity, "team_id")
	require.NotNil(t, teamID.References)
	assert.Equal(t, "teams", teamID.References.Target)
	assert.Equal(t, "id", teamID.References.Field)

	createdAt := fieldByName(t, entity, "created_at")
	require.NotNil(t, createdAt.Default)
	assert.False(t, createdAt.Default.IsLiteral())
	assert.Equal(t, "DataTypes.NOW", createdAt.Default.Text)

	want := []schema.Association{{
		Kind:       schema.BelongsTo,
		Target:     "Team",
		ForeignKey: "team_id",
		Alias:      "team",
	}}
	if diff := cmp.Diff(want, entity.Associations); diff != "" {
		t.Errorf("associations mismatch (-want +got):\n%s", diff)
	}
}

func TestParseModelInit(t *testing.T) {
	entity := mustParseModel(t, "Order.js", `
class Order extends Model {}

Order.init({
  id: { type: DataTypes.INTEGER, primaryKey: true },
  total: { type: DataTypes.DECIMAL(10, 2), allowNull: false },
}, { sequelize, tableName: 'orders' });
`)

	assert.Equal(t, "Order", entity.Name)
	assert.Equal(t, "orders", entity.TableName)

	total := fieldByName(t, entity, "total")
	assert.False(t, total.Nullable)
	assert.Equal(t, "DataTypes.DECIMAL(10, 2)", total.Type.Text)
}

func TestParseModelTableNameFallbacks(t *testing.T) {
	t.Run("define argument", func(t *testing.T) {
		entity := mustParseModel(t, "Customer.js", `
sequelize.define('customers', {
  id: { type: DataTypes.INTEGER, primaryKey: true },
});
`)
		assert.Equal(t, "customers", entity.TableName)
	})

	t.Run("lower-cased entity name", func(t *testing.T) {
		entity := mustParseModel(t, "Invoice.js", `
Invoice.init({
  id: { type: DataTypes.INTEGER, primaryKey: true },
});
`)
		assert.Equal(t, "invoice", entity.TableName)
	})
}

func TestParseModelNotAModel(t *testing.T) {
	t.Run("no definition call", func(t *testing.T) {
		entity, err := parseModel(t, "helpers.js", `
module.exports.formatDate = (d) => d.toISOString();
`)
		require.NoError(t, err)
		assert.Nil(t, entity)
	})

	t.Run("empty field object", func(t *testing.T) {
		entity, err := parseModel(t, "Empty.js", `
sequelize.define('empties', {});
`)
		require.NoError(t, err)
		assert.Nil(t, entity)
	})
}

func TestParseModelMalformed(t *testing.T) {
	_, err := parseModel(t, "Broken.js", `
sequelize.define('users', {
  id: { type: DataTypes.INTEGER,
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestParseModelNamedUnique(t *testing.T) {
	entity := mustParseModel(t, "Member.js", `
sequelize.define('members', {
  email: { type: DataTypes.STRING, unique: 'member_email_idx' },
});
`)
	assert.True(t, fieldByName(t, entity, "email").Unique,
		"named constraint still marks the field unique")
}

func TestParseModelEnumRequiresMarker(t *testing.T) {
	entity := mustParseModel(t, "Tag.js", `
sequelize.define('tags', {
  label: { type: DataTypes.STRING, values: ['a', 'b'] },
});
`)
	assert.Empty(t, fieldByName(t, entity, "label").EnumValues,
		"a values array without an ENUM type is not an enumeration")
}

func TestParseModelReferenceByIdentifier(t *testing.T) {
	entity := mustParseModel(t, "Task.js", `
sequelize.define('tasks', {
  project_id: { type: DataTypes.INTEGER, references: { model: Project, key: 'id' } },
});
`)
	ref := fieldByName(t, entity, "project_id").References
	require.NotNil(t, ref)
	assert.Equal(t, "Project", ref.Target)
}

func TestParseModelAssociationDedup(t *testing.T) {
	entity := mustParseModel(t, "User.js", `
const User = sequelize.define('users', {
  id: { type: DataTypes.INTEGER, primaryKey: true },
});
User.hasMany(Order, { as: 'orders' });
User.hasMany(Order, { as: 'orders', foreignKey: 'user_id' });
`)
	assert.Len(t, entity.Associations, 1,
		"repeated (kind, target, alias) declarations collapse to the first")
}
