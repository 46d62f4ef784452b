package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendz/NL2SQL/internal/schema"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

const userModel = `
sequelize.define('users', {
  id: { type: DataTypes.INTEGER, primaryKey: true },
  name: { type: DataTypes.STRING },
});
`

const orderModel = `
sequelize.define('orders', {
  id: { type: DataTypes.INTEGER, primaryKey: true },
  user_id: { type: DataTypes.INTEGER, references: { model: 'users', key: 'id' } },
});
`

func TestBuild(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"User.js":      userModel,
		"Order.js":     orderModel,
		"Broken.js":    "sequelize.define('broken', {",
		"helpers.js":   "module.exports.noop = () => {};",
		"User.test.js": userModel,
		"api.spec.ts":  userModel,
		"types.d.ts":   "export interface User {}",
		"README.md":    "# models",
	})

	snap, diags, err := NewScanner().Build(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"Order", "User"}, snap.Names(),
		"directory order, with non-models and excluded files skipped")

	require.Len(t, diags, 1, "the malformed file is a diagnostic, not a fatal error")
	assert.Contains(t, diags[0].Path, "Broken.js")
}

func TestBuildCentralizedAssociations(t *testing.T) {
	t.Run("aggregator file is used when no dedicated file exists", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"User.js":  userModel,
			"Order.js": orderModel,
			"index.js": `db.Order.belongsTo(db.User, { foreignKey: 'user_id' });`,
		})

		snap, _, err := NewScanner().Build(context.Background(), dir)
		require.NoError(t, err)

		order, ok := snap.Entity("Order")
		require.True(t, ok)
		require.Len(t, order.Associations, 1)
		assert.Equal(t, schema.BelongsTo, order.Associations[0].Kind)
	})

	t.Run("dedicated file suppresses the aggregator entirely", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"User.js":         userModel,
			"Order.js":        orderModel,
			"associations.js": `db.User.hasMany(db.Order, { as: 'orders' });`,
			"index.js":        `db.Order.belongsTo(db.User);`,
		})

		snap, _, err := NewScanner().Build(context.Background(), dir)
		require.NoError(t, err)

		user, ok := snap.Entity("User")
		require.True(t, ok)
		assert.Len(t, user.Associations, 1)

		order, ok := snap.Entity("Order")
		require.True(t, ok)
		assert.Empty(t, order.Associations,
			"the aggregator stays suppressed even for entities the dedicated file never mentions")
	})

	t.Run("broken dedicated file still suppresses the aggregator", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"User.js":         userModel,
			"Order.js":        orderModel,
			"associations.js": `db.User.hasMany(`,
			"index.js":        `db.Order.belongsTo(db.User);`,
		})

		snap, _, err := NewScanner().Build(context.Background(), dir)
		require.NoError(t, err)

		order, ok := snap.Entity("Order")
		require.True(t, ok)
		assert.Empty(t, order.Associations)
	})

	t.Run("in-file declaration wins over a same-key centralized one", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"User.js": `
const User = sequelize.define('users', {
  id: { type: DataTypes.INTEGER, primaryKey: true },
});
User.hasMany(Order, { as: 'orders', foreignKey: 'owner_id' });
`,
			"associations.js": `db.User.hasMany(db.Order, { as: 'orders', foreignKey: 'user_id' });`,
		})

		snap, _, err := NewScanner().Build(context.Background(), dir)
		require.NoError(t, err)

		user, ok := snap.Entity("User")
		require.True(t, ok)
		require.Len(t, user.Associations, 1)
		assert.Equal(t, "owner_id", user.Associations[0].ForeignKey)
	})
}

func TestBuildDuplicateModelNames(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"user.js": userModel,
		"user.ts": orderModel,
	})

	snap, _, err := NewScanner().Build(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, snap.Entities, 1, "later duplicate names are dropped")
	assert.Equal(t, "users", snap.Entities[0].TableName)
}

func TestBuildErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, _, err := NewScanner().Build(context.Background(), filepath.Join(t.TempDir(), "nope"))
		require.ErrorIs(t, err, ErrNoModelsDir)
	})

	t.Run("no models", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"helpers.js": "module.exports.noop = () => {};",
		})
		_, _, err := NewScanner().Build(context.Background(), dir)
		require.ErrorIs(t, err, ErrNoModels)
	})
}

func TestFindModelsDir(t *testing.T) {
	t.Run("subdirectory", func(t *testing.T) {
		ws := t.TempDir()
		models := filepath.Join(ws, "models")
		require.NoError(t, os.Mkdir(models, 0755))

		got, err := FindModelsDir(ws, "models")
		require.NoError(t, err)
		assert.Equal(t, models, got)
	})

	t.Run("workspace is the models directory", func(t *testing.T) {
		ws := filepath.Join(t.TempDir(), "models")
		require.NoError(t, os.Mkdir(ws, 0755))

		got, err := FindModelsDir(ws, "models")
		require.NoError(t, err)
		assert.Equal(t, ws, got)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := FindModelsDir(t.TempDir(), "models")
		require.ErrorIs(t, err, ErrNoModelsDir)
	})
}

func TestIsModelCandidate(t *testing.T) {
	cases := map[string]bool{
		"User.js":         true,
		"order.mjs":       true,
		"payment.cjs":     true,
		"team.ts":         true,
		"index.js":        false,
		"Index.TS":        false,
		"associations.js": false,
		"user.test.js":    false,
		"api.spec.ts":     false,
		"types.d.ts":      false,
		"notes.md":        false,
		"schema.sql":      false,
	}
	for name, want := range cases {
		assert.Equal(t, want, isModelCandidate(name), name)
	}
}
