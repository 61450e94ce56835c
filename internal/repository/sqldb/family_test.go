package sqldb_test

import (
	"context"
	"testing"

	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/repository/sqldb"
	"github.com/nasirmalek/FamilyCircle/internal/storetest"
)

func TestFamilyMembers(t *testing.T) {
	ctx := context.Background()
	b := storetest.New(t)
	families := sqldb.NewFamilyRepository(b)
	profiles := sqldb.NewProfileRepository(b)

	tgChat := int64(-100123)
	family, err := families.Create(ctx, &models.Family{Name: "Smith Family", TelegramChatID: &tgChat})
	if err != nil {
		t.Fatalf("Create family: %v", err)
	}

	mom, err := profiles.Create(ctx, &models.UserProfile{Username: "Mom", Email: "mom@example.com"})
	if err != nil {
		t.Fatalf("Create profile: %v", err)
	}
	kid, err := profiles.Create(ctx, &models.UserProfile{Username: "Sarah"})
	if err != nil {
		t.Fatalf("Create profile: %v", err)
	}

	if err := families.AddMember(ctx, &models.FamilyMember{FamilyID: family.ID, UserID: mom.ID, Role: models.RoleAdmin, Relation: "Mother"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := families.AddMember(ctx, &models.FamilyMember{FamilyID: family.ID, UserID: kid.ID, Relation: "Daughter"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	// adding again updates in place
	if err := families.AddMember(ctx, &models.FamilyMember{FamilyID: family.ID, UserID: kid.ID, Relation: "Child"}); err != nil {
		t.Fatalf("AddMember again: %v", err)
	}

	members, err := families.GetMembers(ctx, family.ID)
	if err != nil {
		t.Fatalf("GetMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("GetMembers = %d, want 2", len(members))
	}
	byUser := map[string]*models.FamilyMember{}
	for _, m := range members {
		byUser[m.UserID] = m
	}
	if m := byUser[mom.ID]; m == nil || m.Role != models.RoleAdmin || m.Name() != "Mom" {
		t.Errorf("mom member = %+v", m)
	}
	if m := byUser[kid.ID]; m == nil || m.Role != models.RoleMember || m.Relation != "Child" {
		t.Errorf("kid member = %+v, want updated relation", m)
	}

	ok, err := families.IsMember(ctx, family.ID, kid.ID)
	if err != nil || !ok {
		t.Errorf("IsMember(kid) = %v, %v", ok, err)
	}
	ok, err = families.IsMember(ctx, family.ID, "stranger")
	if err != nil || ok {
		t.Errorf("IsMember(stranger) = %v, %v", ok, err)
	}

	got, err := families.GetByTelegramChatID(ctx, tgChat)
	if err != nil || got.ID != family.ID {
		t.Errorf("GetByTelegramChatID = %+v, %v", got, err)
	}
}

func TestFamilyLookupNotFound(t *testing.T) {
	ctx := context.Background()
	families := sqldb.NewFamilyRepository(storetest.New(t))

	if _, err := families.GetByID(ctx, "missing"); !models.IsNotFound(err) {
		t.Errorf("GetByID error = %v, want not found", err)
	}
	if _, err := families.GetByTelegramChatID(ctx, 42); !models.IsNotFound(err) {
		t.Errorf("GetByTelegramChatID error = %v, want not found", err)
	}
	if _, err := families.Update(ctx, &models.Family{ID: "missing", Name: "x"}); !models.IsNotFound(err) {
		t.Errorf("Update error = %v, want not found", err)
	}
}

func TestProfileLookups(t *testing.T) {
	ctx := context.Background()
	profiles := sqldb.NewProfileRepository(storetest.New(t))

	tgID := int64(777)
	created, err := profiles.Create(ctx, &models.UserProfile{Username: "dad", TelegramID: &tgID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	byTG, err := profiles.GetByTelegramID(ctx, tgID)
	if err != nil || byTG.ID != created.ID {
		t.Fatalf("GetByTelegramID = %+v, %v", byTG, err)
	}
	if byTG.TelegramID == nil || *byTG.TelegramID != tgID {
		t.Errorf("TelegramID = %v, want %d", byTG.TelegramID, tgID)
	}
	if byTG.AvatarURL != nil {
		t.Errorf("AvatarURL = %v, want nil", *byTG.AvatarURL)
	}

	avatar := "https://example.com/dad.png"
	byTG.Username = "Dad"
	byTG.AvatarURL = &avatar
	if _, err := profiles.Update(ctx, byTG); err != nil {
		t.Fatalf("Update: %v", err)
	}

	byName, err := profiles.GetByUsername(ctx, "Dad")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if byName.AvatarURL == nil || *byName.AvatarURL != avatar {
		t.Errorf("AvatarURL after update = %v", byName.AvatarURL)
	}

	if _, err := profiles.GetByID(ctx, "missing"); !models.IsNotFound(err) {
		t.Errorf("GetByID error = %v, want not found", err)
	}
}
