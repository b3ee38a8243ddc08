package permissions

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The aggregate counts must equal the permission list they were derived
// from, for any mix of enabled and disabled rows.
func TestRolePermissionsResponseCountsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		n := rng.Intn(40)
		perms := make([]RolePermission, 0, n)
		wantEnabled := 0
		for j := 0; j < n; j++ {
			enabled := rng.Intn(2) == 0
			if enabled {
				wantEnabled++
			}
			perms = append(perms, RolePermission{RoleKey: "ADMIN", IsEnabled: enabled})
		}

		resp := NewRolePermissionsResponse("ADMIN", perms)
		assert.Equal(t, n, resp.TotalPages)
		assert.Equal(t, wantEnabled, resp.EnabledPages)
	}
}

func TestSortRolesByDisplayName(t *testing.T) {
	roles := []Role{
		{Key: "C", Name: "坂本"},
		{Key: "A", Name: "安藤"},
		{Key: "B", Name: "安藤"},
	}
	SortRoles(roles)
	// Equal names fall back to key order.
	posA, posB := -1, -1
	for i, r := range roles {
		switch r.Key {
		case "A":
			posA = i
		case "B":
			posB = i
		}
	}
	assert.Equal(t, posA+1, posB, "equal names must be adjacent, key order")
}

func TestSortPagesStable(t *testing.T) {
	pages := []Page{
		{Key: "payroll", Name: "給与"},
		{Key: "dashboard", Name: "ダッシュボード"},
	}
	SortPages(pages)
	assert.Len(t, pages, 2)
}
