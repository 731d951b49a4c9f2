package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/alumni-api/internal/domain"
	"github.com/alumni-api/internal/pkg/id"
	"github.com/alumni-api/internal/pkg/identity"
	"github.com/alumni-api/internal/pkg/validate"
	"golang.org/x/sync/singleflight"
)

// Attribute names used in partial update maps. They match the dynamodbav tags
// and the postgres column names.
const (
	fieldFirstName        = "first_name"
	fieldLastName         = "last_name"
	fieldBranch           = "branch"
	fieldBranchCode       = "branch_code"
	fieldCohortEnd        = "cohort_end"
	fieldBio              = "bio"
	fieldLinkedInURL      = "linkedin_url"
	fieldGitHubURL        = "github_url"
	fieldWebsite          = "website"
	fieldSkills           = "skills"
	fieldCompany          = "company"
	fieldDesignation      = "designation"
	fieldLocation         = "location"
	fieldPhone            = "phone"
	fieldAvatarURL        = "avatar_url"
	fieldProfileCompleted = "profile_completed"
	fieldIsDeleted        = "is_deleted"
	fieldDeletedAt        = "deleted_at"
	fieldUpdatedAt        = "updated_at"
)

// MaxAvatarBytes caps avatar uploads.
const MaxAvatarBytes = 5 << 20

var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Service interface {
	Provision(ctx context.Context, req domain.ProvisionProfileRequest) (*domain.Profile, bool, error)
	Complete(ctx context.Context, authID string, req domain.CompleteProfileRequest) (*domain.Profile, error)
	Get(ctx context.Context, authID string) (*domain.Profile, error)
	Update(ctx context.Context, authID string, req domain.UpdateProfileRequest) (*domain.Profile, error)
	Delete(ctx context.Context, authID string) error
	UploadAvatar(ctx context.Context, authID string, r io.Reader, contentType string) (*domain.Profile, error)
}

// Store is the insert-or-get profile primitive plus pure updates.
type Store interface {
	GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error)
	InsertOrGet(ctx context.Context, p *domain.Profile) (*domain.Profile, bool, error)
	Update(ctx context.Context, authID string, updates map[string]interface{}) (*domain.Profile, error)
}

type fileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, objectURL string) error
}

type service struct {
	repo    Store
	files   fileStore
	flights singleflight.Group
	now     func() time.Time
}

type ServiceDeps struct {
	ProfileRepo Store
	FileStore   fileStore
	Now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.ProfileRepo, files: deps.FileStore, now: deps.Now}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

type provisioned struct {
	profile *domain.Profile
	created bool
}

// Provision returns the profile for req.AuthID, creating it on first call.
// Calls for the same auth id within this process share one store round trip;
// only the caller that started it sees created=true.
func (s *service) Provision(ctx context.Context, req domain.ProvisionProfileRequest) (*domain.Profile, bool, error) {
	req.AuthID = strings.TrimSpace(req.AuthID)
	req.Email = identity.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, false, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}

	// The shared call must outlive any single caller; each caller still
	// stops waiting when its own ctx is done.
	leader := false
	ch := s.flights.DoChan(req.AuthID, func() (interface{}, error) {
		leader = true
		return s.provision(context.WithoutCancel(ctx), req)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		res := r.Val.(provisioned)
		return res.profile, res.created && leader, nil
	}
}

func (s *service) provision(ctx context.Context, req domain.ProvisionProfileRequest) (provisioned, error) {
	existing, err := s.repo.GetByAuthID(ctx, req.AuthID)
	if err == nil {
		return provisioned{profile: existing}, s.checkOwner(existing, req)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return provisioned{}, fmt.Errorf("lookup profile: %w", err)
	}

	attrs, err := identity.Parse(req.Email)
	if err != nil {
		return provisioned{}, err
	}
	now := s.now()
	p := &domain.Profile{
		AuthID:      req.AuthID,
		ProfileID:   id.New(),
		Email:       req.Email,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		USN:         attrs.USN,
		Branch:      attrs.Unit,
		BranchCode:  attrs.UnitCode,
		CohortStart: attrs.CohortStart,
		CohortEnd:   attrs.CohortEnd,
		Phone:       req.Phone,
		Skills:      []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	got, created, err := s.repo.InsertOrGet(ctx, p)
	if err != nil {
		return provisioned{}, fmt.Errorf("insert profile: %w", err)
	}
	if err := s.checkOwner(got, req); err != nil {
		return provisioned{}, err
	}
	if created {
		slog.InfoContext(ctx, "profile provisioned", "auth_id", got.AuthID, "profile_id", got.ProfileID)
	}
	return provisioned{profile: got, created: created}, nil
}

// checkOwner rejects an email already bound to another auth id. The same
// identity provisioning twice is never a conflict.
func (s *service) checkOwner(p *domain.Profile, req domain.ProvisionProfileRequest) error {
	if p.AuthID != req.AuthID {
		return fmt.Errorf("email is linked to another account: %w", domain.ErrConflict)
	}
	return nil
}

func (s *service) Complete(ctx context.Context, authID string, req domain.CompleteProfileRequest) (*domain.Profile, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	code, ok := identity.BranchCode(req.Branch)
	if !ok {
		return nil, fmt.Errorf("unknown branch %q: %w", req.Branch, domain.ErrBadRequest)
	}

	updates := map[string]interface{}{
		fieldFirstName:        strings.TrimSpace(req.FirstName),
		fieldLastName:         strings.TrimSpace(req.LastName),
		fieldBranch:           identity.Branches[code],
		fieldBranchCode:       code,
		fieldCohortEnd:        req.PassingYear,
		fieldProfileCompleted: true,
		fieldUpdatedAt:        s.now(),
	}
	setOptional(updates, fieldBio, req.Bio)
	setOptional(updates, fieldLinkedInURL, req.LinkedInURL)
	setOptional(updates, fieldGitHubURL, req.GitHubURL)
	setOptional(updates, fieldWebsite, req.Website)
	setOptional(updates, fieldCompany, req.Company)
	setOptional(updates, fieldDesignation, req.Designation)
	setOptional(updates, fieldLocation, req.Location)
	setOptional(updates, fieldPhone, req.Phone)
	if req.Skills != nil {
		updates[fieldSkills] = req.Skills
	}

	if _, err := s.Get(ctx, authID); err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, authID, updates)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "profile completed", "auth_id", authID)
	return p, nil
}

func (s *service) Get(ctx context.Context, authID string) (*domain.Profile, error) {
	p, err := s.repo.GetByAuthID(ctx, authID)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, fmt.Errorf("profile deleted: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (s *service) Update(ctx context.Context, authID string, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates[fieldFirstName] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates[fieldLastName] = strings.TrimSpace(*req.LastName)
	}
	setOptional(updates, fieldBio, req.Bio)
	setOptional(updates, fieldLinkedInURL, req.LinkedInURL)
	setOptional(updates, fieldGitHubURL, req.GitHubURL)
	setOptional(updates, fieldWebsite, req.Website)
	setOptional(updates, fieldCompany, req.Company)
	setOptional(updates, fieldDesignation, req.Designation)
	setOptional(updates, fieldLocation, req.Location)
	setOptional(updates, fieldPhone, req.Phone)
	if req.Skills != nil {
		updates[fieldSkills] = req.Skills
	}

	current, err := s.Get(ctx, authID)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return current, nil
	}
	updates[fieldUpdatedAt] = s.now()
	return s.repo.Update(ctx, authID, updates)
}

func (s *service) Delete(ctx context.Context, authID string) error {
	if _, err := s.Get(ctx, authID); err != nil {
		return err
	}
	now := s.now()
	_, err := s.repo.Update(ctx, authID, map[string]interface{}{
		fieldIsDeleted: true,
		fieldDeletedAt: now,
		fieldUpdatedAt: now,
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "profile deleted", "auth_id", authID)
	return nil
}

// UploadAvatar stores an image under avatars/<auth_id>/ and records its URL.
// The previous avatar object is removed on a best-effort basis.
func (s *service) UploadAvatar(ctx context.Context, authID string, r io.Reader, contentType string) (*domain.Profile, error) {
	ext, ok := avatarTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported avatar type %q: %w", contentType, domain.ErrBadRequest)
	}
	current, err := s.Get(ctx, authID)
	if err != nil {
		return nil, err
	}

	key := path.Join("avatars", authID, id.New()+ext)
	url, err := s.files.Upload(ctx, key, io.LimitReader(r, MaxAvatarBytes), contentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	p, err := s.repo.Update(ctx, authID, map[string]interface{}{
		fieldAvatarURL: url,
		fieldUpdatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if current.AvatarURL != nil && *current.AvatarURL != url {
		if err := s.files.Delete(ctx, *current.AvatarURL); err != nil {
			slog.WarnContext(ctx, "could not delete previous avatar", "auth_id", authID, "err", err)
		}
	}
	return p, nil
}

func setOptional(updates map[string]interface{}, field string, v *string) {
	if v != nil {
		updates[field] = strings.TrimSpace(*v)
	}
}
