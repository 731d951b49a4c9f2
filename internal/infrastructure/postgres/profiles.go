package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alumni-api/internal/domain"
	"github.com/jackc/pgx/v5"
)

var profileColumns = []string{
	"auth_id", "profile_id", "email", "first_name", "last_name",
	"usn", "branch", "branch_code", "cohort_start", "cohort_end",
	"bio", "linkedin_url", "github_url", "website", "skills",
	"company", "designation", "location", "phone", "avatar_url",
	"profile_completed", "is_deleted", "deleted_at", "created_at", "updated_at",
}

var (
	selectList = strings.Join(profileColumns, ", ")
	updatable  = func() map[string]bool {
		m := make(map[string]bool, len(profileColumns))
		for _, c := range profileColumns[1:] {
			m[c] = true
		}
		return m
	}()
)

// ProfileRepo stores profiles in PostgreSQL.
type ProfileRepo struct {
	db DB
}

func NewProfileRepo(db DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error) {
	row := r.db.QueryRow(ctx, "SELECT "+selectList+" FROM profiles WHERE auth_id = $1", authID)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	return p, err
}

// InsertOrGet inserts p. If auth_id or email already exists the insert is a
// no-op and the existing row is returned with created=false, preferring the
// row owned by p.AuthID.
func (r *ProfileRepo) InsertOrGet(ctx context.Context, p *domain.Profile) (*domain.Profile, bool, error) {
	placeholders := make([]string, len(profileColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := "INSERT INTO profiles (" + selectList + ") VALUES (" + strings.Join(placeholders, ", ") +
		") ON CONFLICT DO NOTHING RETURNING " + selectList

	got, err := scanProfile(r.db.QueryRow(ctx, insert, profileArgs(p)...))
	if err == nil {
		return got, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert profile: %w", err)
	}

	existing, err := scanProfile(r.db.QueryRow(ctx,
		"SELECT "+selectList+" FROM profiles WHERE auth_id = $1 OR email = $2 ORDER BY (auth_id = $1) DESC LIMIT 1",
		p.AuthID, p.Email))
	if err != nil {
		return nil, false, fmt.Errorf("read existing profile: %w", err)
	}
	return existing, false, nil
}

// Update sets the given columns and returns the new row.
func (r *ProfileRepo) Update(ctx context.Context, authID string, updates map[string]interface{}) (*domain.Profile, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	cols := make([]string, 0, len(updates))
	for k := range updates {
		if !updatable[k] {
			return nil, fmt.Errorf("unknown column %q: %w", k, domain.ErrBadRequest)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		args = append(args, updates[c])
	}
	args = append(args, authID)
	query := fmt.Sprintf("UPDATE profiles SET %s WHERE auth_id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), selectList)

	p, err := scanProfile(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	return p, err
}

func profileArgs(p *domain.Profile) []any {
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	return []any{
		p.AuthID, p.ProfileID, p.Email, p.FirstName, p.LastName,
		p.USN, p.Branch, p.BranchCode, p.CohortStart, p.CohortEnd,
		p.Bio, p.LinkedInURL, p.GitHubURL, p.Website, skills,
		p.Company, p.Designation, p.Location, p.Phone, p.AvatarURL,
		p.ProfileCompleted, p.IsDeleted, p.DeletedAt, p.CreatedAt, p.UpdatedAt,
	}
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.AuthID, &p.ProfileID, &p.Email, &p.FirstName, &p.LastName,
		&p.USN, &p.Branch, &p.BranchCode, &p.CohortStart, &p.CohortEnd,
		&p.Bio, &p.LinkedInURL, &p.GitHubURL, &p.Website, &p.Skills,
		&p.Company, &p.Designation, &p.Location, &p.Phone, &p.AvatarURL,
		&p.ProfileCompleted, &p.IsDeleted, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
