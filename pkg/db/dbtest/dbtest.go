// Package dbtest opens throwaway SQLite databases carrying the full schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// Open returns a client over a private in-memory database. The pool is capped
// at one connection so concurrent transactions queue instead of failing with
// SQLITE_LOCKED.
func Open(t testing.TB) *db.Client {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:vn_%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db.FromConn(conn)
}

// SeedNode inserts a hierarchy node directly, bypassing directory validation.
func SeedNode(t testing.TB, client *db.Client, name string, role enums.Role, parentID *uuid.UUID) models.HierarchyNode {
	t.Helper()
	node := models.HierarchyNode{Name: name, Role: role, ParentID: parentID}
	if err := client.DB().Create(&node).Error; err != nil {
		t.Fatalf("seed node %s: %v", name, err)
	}
	return node
}

// Chain is a seeded MitraCabang → Cabang → Link path.
type Chain struct {
	Partner models.HierarchyNode
	Branch  models.HierarchyNode
	Seller  models.HierarchyNode
}

// SeedChain inserts a partner, a branch under it and a seller under the branch.
func SeedChain(t testing.TB, client *db.Client, prefix string) Chain {
	t.Helper()
	partner := SeedNode(t, client, prefix+" Partner", enums.RoleMitraCabang, nil)
	branch := SeedNode(t, client, prefix+" Branch", enums.RoleCabang, &partner.ID)
	seller := SeedNode(t, client, prefix+" Seller", enums.RoleLink, &branch.ID)
	return Chain{Partner: partner, Branch: branch, Seller: seller}
}
