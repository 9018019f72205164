package repository

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RoleRepo.Delete issues a plain DELETE on roles and relies on the
// user_roles foreign keys to sweep the assignment rows; without the
// cascade the delete would fail for any role still assigned.
func TestUserRolesForeignKeysCascadeOnDelete(t *testing.T) {
	ddl, err := os.ReadFile("../../schema.sql")
	require.NoError(t, err)

	for _, fk := range []string{"fk_user_roles_user", "fk_user_roles_role"} {
		i := strings.Index(string(ddl), "CONSTRAINT "+fk)
		require.GreaterOrEqual(t, i, 0, "constraint %s missing from schema", fk)
		line := string(ddl)[i:]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		assert.Contains(t, line, "ON DELETE CASCADE", "constraint %s must cascade", fk)
	}
}
