package service

import (
	"context"
	"testing"

	"github.com/sakif/rankboard/internal/model"
)

func TestSeed_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeder := NewSeeder(env.users, env.challenges, testLogger())
	opts := SeedOptions{RootUsername: "root", RootEmail: "root@example.com", RootPassword: "R00t!pass"}

	first, err := seeder.Seed(ctx, opts)
	if err != nil {
		t.Fatalf("Seed() unexpected error: %v", err)
	}
	if first.Users != len(seedJudges)+len(seedUsers) {
		t.Errorf("first run created %d users, want %d", first.Users, len(seedJudges)+len(seedUsers))
	}
	if first.Challenges != 1 {
		t.Errorf("first run created %d challenges, want 1", first.Challenges)
	}

	second, err := seeder.Seed(ctx, opts)
	if err != nil {
		t.Fatalf("second Seed() unexpected error: %v", err)
	}
	if second.Users != 0 || second.Challenges != 0 {
		t.Errorf("second run created %+v, want nothing", second)
	}

	admins, _ := env.users.List(ctx, model.RoleAdmin)
	if len(admins) != 3 {
		t.Errorf("admins = %d, want root + 2 judges", len(admins))
	}

	if _, err := env.auth.Login(ctx, "judge1@rankboard.local", seedJudgePassword); err != nil {
		t.Errorf("judge1 cannot log in: %v", err)
	}

	challenges, _ := env.challenges.List(ctx)
	root, _ := env.store.GetUserByEmail(ctx, "root@example.com")
	if len(challenges) != 1 || challenges[0].CreatedByAdminID != root.ID {
		t.Errorf("sample challenge = %+v, want one created by root", challenges)
	}
}

func TestSeed_FakeUsers(t *testing.T) {
	env := newTestEnv(t)
	seeder := NewSeeder(env.users, env.challenges, testLogger())

	report, err := seeder.Seed(context.Background(), SeedOptions{Fake: 5})
	if err != nil {
		t.Fatalf("Seed() unexpected error: %v", err)
	}
	base := len(seedJudges) + len(seedUsers)
	if report.Users <= base || report.Users > base+5 {
		t.Errorf("created %d users, want between %d and %d", report.Users, base+1, base+5)
	}
}
