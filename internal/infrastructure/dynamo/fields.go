package dynamo

// DynamoDB attribute names used in keys and condition expressions.
const (
	fieldAuthID    = "auth_id"
	fieldEmail     = "email"
	fieldVersion   = "version"
	fieldUpdatedAt = "updated_at"
)
