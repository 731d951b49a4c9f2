package domain

import "time"

// Profile is the durable alumni record. One per auth identity and one per email.
type Profile struct {
	AuthID           string     `json:"auth_id" dynamodbav:"auth_id"`
	ProfileID        string     `json:"id" dynamodbav:"profile_id"`
	Email            string     `json:"email" dynamodbav:"email"`
	FirstName        string     `json:"first_name" dynamodbav:"first_name"`
	LastName         string     `json:"last_name" dynamodbav:"last_name"`
	USN              string     `json:"usn" dynamodbav:"usn"`
	Branch           string     `json:"branch" dynamodbav:"branch"`
	BranchCode       string     `json:"branch_code" dynamodbav:"branch_code"`
	CohortStart      int        `json:"cohort_start" dynamodbav:"cohort_start"`
	CohortEnd        int        `json:"passing_year" dynamodbav:"cohort_end"`
	Bio              *string    `json:"bio" dynamodbav:"bio"`
	LinkedInURL      *string    `json:"linkedin_url" dynamodbav:"linkedin_url"`
	GitHubURL        *string    `json:"github_url" dynamodbav:"github_url"`
	Website          *string    `json:"website" dynamodbav:"website"`
	Skills           []string   `json:"skills" dynamodbav:"skills"`
	Company          *string    `json:"company" dynamodbav:"company"`
	Designation      *string    `json:"designation" dynamodbav:"designation"`
	Location         *string    `json:"location" dynamodbav:"location"`
	Phone            *string    `json:"phone" dynamodbav:"phone"`
	AvatarURL        *string    `json:"avatar_url" dynamodbav:"avatar_url"`
	ProfileCompleted bool       `json:"profile_completed" dynamodbav:"profile_completed"`
	IsDeleted        bool       `json:"is_deleted" dynamodbav:"is_deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt        time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// IdentityAttributes are derived deterministically from an email local part.
type IdentityAttributes struct {
	USN         string `json:"usn"`
	Unit        string `json:"unit"`
	UnitCode    string `json:"unit_code"`
	CohortStart int    `json:"cohort_start"`
	CohortEnd   int    `json:"cohort_end"`
}

type ProvisionProfileRequest struct {
	AuthID    string  `json:"auth_id" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     *string `json:"phone"`
}

// CompleteProfileRequest carries the required identity fields plus the optional
// free-form ones. Branch and passing year are confirmed by the user here.
type CompleteProfileRequest struct {
	FirstName   string   `json:"first_name" validate:"required"`
	LastName    string   `json:"last_name" validate:"required"`
	Branch      string   `json:"branch" validate:"required"`
	PassingYear int      `json:"passing_year" validate:"required,min=1950,max=2100"`
	Bio         *string  `json:"bio"`
	LinkedInURL *string  `json:"linkedin_url" validate:"omitempty,url"`
	GitHubURL   *string  `json:"github_url" validate:"omitempty,url"`
	Website     *string  `json:"website" validate:"omitempty,url"`
	Skills      []string `json:"skills" validate:"omitempty,max=50,dive,required,max=64"`
	Company     *string  `json:"company"`
	Designation *string  `json:"designation"`
	Location    *string  `json:"location"`
	Phone       *string  `json:"phone"`
}

type UpdateProfileRequest struct {
	FirstName   *string  `json:"first_name"`
	LastName    *string  `json:"last_name"`
	Bio         *string  `json:"bio"`
	LinkedInURL *string  `json:"linkedin_url" validate:"omitempty,url"`
	GitHubURL   *string  `json:"github_url" validate:"omitempty,url"`
	Website     *string  `json:"website" validate:"omitempty,url"`
	Skills      []string `json:"skills" validate:"omitempty,max=50,dive,required,max=64"`
	Company     *string  `json:"company"`
	Designation *string  `json:"designation"`
	Location    *string  `json:"location"`
	Phone       *string  `json:"phone"`
}
