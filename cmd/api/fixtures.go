package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lab-access-api/internal/domain"
)

// fixtureActivity and fixtureStaff mirror their domain types with every
// field addressable from JSON; the domain types hide the enrolment roster
// and the password hash from API encoding.
type fixtureActivity struct {
	domain.Activity
	Enrolled []string `json:"enrolled"`
}

type fixtureStaff struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

// fixtureSet backs the memory storage mode with activities and staff users
// loaded from a JSON file. Lookups are read-only after load.
type fixtureSet struct {
	Activities []fixtureActivity `json:"activities"`
	Staff      []fixtureStaff    `json:"staff"`

	byActivity map[string]*domain.Activity
	byEmail    map[string]*domain.User
}

func loadFixtures(path string) (*fixtureSet, error) {
	fs := &fixtureSet{
		byActivity: make(map[string]*domain.Activity),
		byEmail:    make(map[string]*domain.User),
	}
	if path == "" {
		return fs, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	if err := json.Unmarshal(raw, fs); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i := range fs.Activities {
		act := fs.Activities[i].Activity
		act.Enrolled = fs.Activities[i].Enrolled
		fs.byActivity[act.ActivityID] = &act
	}
	for i := range fs.Staff {
		u := fs.Staff[i].User
		u.PasswordHash = fs.Staff[i].PasswordHash
		fs.byEmail[strings.ToLower(u.Email)] = &u
	}
	return fs, nil
}

func (f *fixtureSet) Get(_ context.Context, activityID string) (*domain.Activity, error) {
	act, ok := f.byActivity[activityID]
	if !ok {
		return nil, fmt.Errorf("activity %q: %w", activityID, domain.ErrNotFound)
	}
	return act, nil
}

func (f *fixtureSet) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
	}
	return u, nil
}
