package services

import (
	"testing"

	"wav/internal/models"
	"wav/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	user := testutil.CreateTestUser(t, db)
	svc.Log(user.ID, AuditActionUnbox, "card", "card-1", "127.0.0.1", map[string]interface{}{"is_new": true})

	var entries []models.AuditLog
	db.Find(&entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Action != AuditActionUnbox || entries[0].ResourceID != "card-1" {
		t.Errorf("unexpected entry %+v", entries[0])
	}
	if entries[0].Changes != `{"is_new":true}` {
		t.Errorf("unexpected changes %s", entries[0].Changes)
	}
}
