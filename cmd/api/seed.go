package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/infrastructure/dynamo"
	"github.com/lab-access-api/internal/pkg/id"
)

// seedDynamo writes the fixture activities and staff users into their
// DynamoDB tables. Existing staff records are refreshed in place so their
// user id and created_at survive repeated seeding; activities are plain
// puts since the platform owns that table anyway.
func seedDynamo(ctx context.Context, users *dynamo.UserRepo, activities *dynamo.ActivityRepo, fs *fixtureSet) error {
	for _, act := range fs.byActivity {
		if err := activities.Put(ctx, act); err != nil {
			return fmt.Errorf("seed activity %q: %w", act.ActivityID, err)
		}
	}
	for _, u := range fs.byEmail {
		existing, err := users.GetByEmail(ctx, u.Email)
		switch {
		case err == nil:
			err = users.Update(ctx, existing.UserID, map[string]interface{}{
				"name":          u.Name,
				"password_hash": u.PasswordHash,
				"role":          u.Role,
				"enable":        u.Enable,
			})
			if err != nil {
				return fmt.Errorf("seed staff %q: %w", u.Email, err)
			}
		case errors.Is(err, domain.ErrNotFound):
			fresh := *u
			fresh.UserID = id.New()
			fresh.CreatedAt = time.Now().UTC()
			fresh.UpdatedAt = fresh.CreatedAt
			if err := users.Put(ctx, &fresh); err != nil {
				return fmt.Errorf("seed staff %q: %w", u.Email, err)
			}
		default:
			return fmt.Errorf("seed staff %q: %w", u.Email, err)
		}
	}
	return nil
}
