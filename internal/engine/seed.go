package engine

import (
	"context"
	"errors"

	"flatconnect/internal/domain"
	"flatconnect/internal/repo"
)

// SeedPassword is shared by all demo accounts.
const SeedPassword = "flatconnect123"

// SeedUser is a demo account created by Seed.
type SeedUser struct {
	Username string
	Email    string
	First    string
	Last     string
	Role     domain.Role
	Flat     string
	Block    string
	Special  string
}

var SeedUsers = []SeedUser{
	{Username: "admin", Email: "admin@flatconnect.local", First: "Asha", Last: "Rao", Role: domain.RoleAdmin, Flat: "A-001", Block: "A"},
	{Username: "secretary", Email: "secretary@flatconnect.local", First: "Sunil", Last: "Mehta", Role: domain.RoleSecretary, Flat: "A-002", Block: "A"},
	{Username: "ravi", Email: "ravi@flatconnect.local", First: "Ravi", Last: "Kumar", Role: domain.RoleWorker, Flat: "S-1", Block: "Staff", Special: "Plumbing"},
	{Username: "meena", Email: "meena@flatconnect.local", First: "Meena", Last: "Iyer", Role: domain.RoleMember, Flat: "B-204", Block: "B"},
}

// Seed creates the demo accounts. Accounts that already exist are left alone.
func (e Engine) Seed(ctx context.Context) error {
	for _, su := range SeedUsers {
		id, err := e.Register(ctx, RegisterInput{
			Username:  su.Username,
			Email:     su.Email,
			Password1: SeedPassword,
			Password2: SeedPassword,
		})
		var verr ValidationError
		if errors.As(err, &verr) && verr.Field == "email" {
			e.Log.Debug().Str("email", su.Email).Msg("seed user exists")
			continue
		}
		if err != nil {
			return err
		}
		_, err = e.UpdateProfile(ctx, Principal{UserID: id}, domain.Profile{
			FirstName:      su.First,
			LastName:       su.Last,
			Role:           su.Role,
			FlatNumber:     su.Flat,
			BuildingBlock:  su.Block,
			Specialization: su.Special,
		})
		if err != nil {
			return err
		}
	}
	e.Log.Info().Int("users", len(SeedUsers)).Msg("demo accounts ready")
	return nil
}

// UserID looks up an account id by email or username.
func (e Engine) UserID(ctx context.Context, login string) (int64, error) {
	u, err := e.Repo.UserByLogin(ctx, login)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, NotFoundError{What: "User"}
	}
	return u.ID, err
}
