package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T, opts ...store.Option) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", opts...)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Fixture is a small seeded workspace: one admin, one client contact and
// one project owned by a client.
type Fixture struct {
	Admin   *model.Profile
	Member  *model.Profile
	Client  *model.Client
	Project *model.Project
}

// Seed fills s with a Fixture.
func Seed(t *testing.T, s store.Store) Fixture {
	t.Helper()
	ctx := context.Background()

	admin := MustProfile(t, s, "Ada Admin", "ada@agency.test", model.RoleAdmin)
	member := MustProfile(t, s, "Carl Client", "carl@client.test", model.RoleClient)

	email := "billing@client.test"
	client, err := s.CreateClient(ctx, model.Client{Name: "Client Co", Email: &email})
	if err != nil {
		t.Fatalf("seeding client: %v", err)
	}

	end := time.Now().UTC().Add(72 * time.Hour)
	project, err := s.CreateProject(ctx, model.Project{
		Name:      "Launch",
		ClientID:  client.ID,
		EndDate:   &end,
		CreatedBy: &admin.ID,
	})
	if err != nil {
		t.Fatalf("seeding project: %v", err)
	}

	return Fixture{Admin: admin, Member: member, Client: client, Project: project}
}

// MustProfile creates a profile or fails the test.
func MustProfile(t *testing.T, s store.Store, name, email string, role model.Role) *model.Profile {
	t.Helper()
	p, err := s.CreateProfile(context.Background(), model.Profile{
		FullName: name,
		Email:    email,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("seeding profile %s: %v", email, err)
	}
	return p
}

// MustDeliverable creates a deliverable due at due or fails the test.
func MustDeliverable(t *testing.T, s store.Store, projectID, name string, due time.Time) *model.Deliverable {
	t.Helper()
	d, err := s.CreateDeliverable(context.Background(), model.Deliverable{
		ProjectID: projectID,
		Name:      name,
		DueDate:   &due,
	})
	if err != nil {
		t.Fatalf("seeding deliverable %s: %v", name, err)
	}
	return d
}
