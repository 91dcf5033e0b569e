package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flatconnect/internal/domain"
	sdk "flatconnect/sdk/go"
)

// ProfileForm is the completion and edit form. Role "user" means member.
type ProfileForm struct {
	FullName         string
	Phone            string
	EmergencyContact string
	BuildingBlock    string
	FlatNumber       string
	DateOfBirth      string
	Role             string
	Specialization   string
}

// Validate returns a ValidationError naming every problem field.
func (f ProfileForm) Validate() error {
	var fields, problems []string
	check := func(field, value, msg string) {
		if strings.TrimSpace(value) == "" {
			fields = append(fields, field)
			problems = append(problems, msg)
		}
	}
	check("full_name", f.FullName, "Full name is required")
	check("phone", f.Phone, "Phone number is required")
	check("emergency_contact", f.EmergencyContact, "Emergency contact is required")
	check("building_block", f.BuildingBlock, "Building/Block is required")
	check("flat_number", f.FlatNumber, "Flat number is required")
	check("date_of_birth", f.DateOfBirth, "Date of birth is required")
	if dob := strings.TrimSpace(f.DateOfBirth); dob != "" {
		if _, err := time.Parse("2006-01-02", dob); err != nil {
			fields = append(fields, "date_of_birth")
			problems = append(problems, "Date of birth must be YYYY-MM-DD")
		}
	}
	role := f.role()
	switch role {
	case "":
		fields = append(fields, "role")
		problems = append(problems, "Please select a role")
	case domain.RoleMember, domain.RoleWorker, domain.RoleAdmin, domain.RoleSecretary:
	default:
		fields = append(fields, "role")
		problems = append(problems, fmt.Sprintf("Unknown role %q", f.Role))
	}
	if role == domain.RoleWorker {
		check("specialization", f.Specialization, "Specialization is required for workers")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields, Message: strings.Join(problems, "; ")}
	}
	return nil
}

func (f ProfileForm) role() domain.Role {
	r := strings.ToLower(strings.TrimSpace(f.Role))
	if r == "user" {
		return domain.RoleMember
	}
	return domain.Role(r)
}

// Profile converts the form into the wire profile. The last name defaults to "User".
func (f ProfileForm) Profile() domain.Profile {
	parts := strings.Fields(f.FullName)
	first, last := "", "User"
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	p := domain.Profile{
		FirstName:        first,
		LastName:         last,
		Role:             f.role(),
		FlatNumber:       strings.TrimSpace(f.FlatNumber),
		BuildingBlock:    strings.TrimSpace(f.BuildingBlock),
		PhoneNumber:      strings.TrimSpace(f.Phone),
		EmergencyContact: strings.TrimSpace(f.EmergencyContact),
		DateOfBirth:      strings.TrimSpace(f.DateOfBirth),
	}
	if p.Role == domain.RoleWorker {
		p.Specialization = strings.TrimSpace(f.Specialization)
	}
	return p
}

// FormFromProfile pre-fills the edit form.
func FormFromProfile(p domain.Profile) ProfileForm {
	role := string(p.Role)
	if p.Role == domain.RoleMember {
		role = "user"
	}
	return ProfileForm{
		FullName:         p.FullName(),
		Phone:            p.PhoneNumber,
		EmergencyContact: p.EmergencyContact,
		BuildingBlock:    p.BuildingBlock,
		FlatNumber:       p.FlatNumber,
		DateOfBirth:      p.DateOfBirth,
		Role:             role,
		Specialization:   p.Specialization,
	}
}

// ProfileClient reads and writes the caller's profile.
type ProfileClient interface {
	Profile(ctx context.Context) (sdk.Profile, error)
	UpdateProfile(ctx context.Context, p sdk.Profile) (sdk.Profile, error)
}

// Profiles runs the completion, edit and view flows.
type Profiles struct {
	Client   ProfileClient
	Sessions SessionKeeper
	Log      zerolog.Logger
}

// Complete submits the first profile and records the chosen role locally.
func (p *Profiles) Complete(ctx context.Context, form ProfileForm) (domain.Profile, Page, error) {
	saved, err := p.save(ctx, form)
	if err != nil {
		return domain.Profile{}, "", err
	}
	role := form.role()
	if err := p.Sessions.SetRole(ctx, role); err != nil {
		return saved, "", fmt.Errorf("persist role: %w", err)
	}
	if err := p.Sessions.MarkProfileCompleted(ctx); err != nil {
		return saved, "", fmt.Errorf("persist profile flag: %w", err)
	}
	return saved, Landing(role), nil
}

// Edit updates an existing profile.
func (p *Profiles) Edit(ctx context.Context, form ProfileForm) (domain.Profile, error) {
	return p.save(ctx, form)
}

// View fetches the profile.
func (p *Profiles) View(ctx context.Context) (domain.Profile, error) {
	prof, err := p.Client.Profile(ctx)
	if err != nil {
		return domain.Profile{}, opErr(OpLoad, err)
	}
	return prof, nil
}

func (p *Profiles) save(ctx context.Context, form ProfileForm) (domain.Profile, error) {
	if err := form.Validate(); err != nil {
		return domain.Profile{}, err
	}
	saved, err := p.Client.UpdateProfile(ctx, form.Profile())
	if err != nil {
		p.Log.Warn().Err(err).Msg("profile update failed")
		return domain.Profile{}, opErr(OpProfile, err)
	}
	return saved, nil
}
