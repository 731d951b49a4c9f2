package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alumni-api/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// emailGuard reserves an email for exactly one auth_id.
type emailGuard struct {
	Email  string `dynamodbav:"email"`
	AuthID string `dynamodbav:"auth_id"`
}

// ProfileRepo provides typed DynamoDB operations for the profiles table.
type ProfileRepo struct {
	client      API
	tableName   string
	emailsTable string
}

func NewProfileRepo(client API, tableName, emailsTable string) *ProfileRepo {
	return &ProfileRepo{client: client, tableName: tableName, emailsTable: emailsTable}
}

func (r *ProfileRepo) GetByAuthID(ctx context.Context, authID string) (*domain.Profile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldAuthID, authID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

var errProfileContention = errors.New("profile insert kept conflicting")

// InsertOrGet writes the profile and its email guard in one transaction. When
// either key is taken the existing owner is read back with created=false. A
// transaction cancelled for any other reason, such as a concurrent write to the
// same keys, is retried.
func (r *ProfileRepo) InsertOrGet(ctx context.Context, p *domain.Profile) (*domain.Profile, bool, error) {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return nil, false, fmt.Errorf("marshal profile: %w", err)
	}
	guard, err := attributevalue.MarshalMap(emailGuard{Email: p.Email, AuthID: p.AuthID})
	if err != nil {
		return nil, false, fmt.Errorf("marshal email guard: %w", err)
	}
	in := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#k)"),
				ExpressionAttributeNames: map[string]string{"#k": fieldAuthID},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.emailsTable),
				Item:                     guard,
				ConditionExpression:      aws.String("attribute_not_exists(#k)"),
				ExpressionAttributeNames: map[string]string{"#k": fieldEmail},
			}},
		},
	}

	for attempt := 0; attempt < maxConditionalRetries; attempt++ {
		_, err = r.client.TransactWriteItems(ctx, in)
		if err == nil {
			out := *p
			return &out, true, nil
		}
		if !isTransactionCanceled(err) {
			return nil, false, err
		}
		if hasCancellationReason(err, cancelConditionalCheckFailed) {
			existing, err := r.existing(ctx, p)
			if err == nil {
				return existing, false, nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return nil, false, err
			}
		}
		if err := backoff(ctx, attempt); err != nil {
			return nil, false, err
		}
	}
	return nil, false, errProfileContention
}

// existing returns the row that owns p's auth id, or failing that its email.
func (r *ProfileRepo) existing(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	got, err := r.GetByAuthID(ctx, p.AuthID)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return got, err
	}
	owner, err := r.emailOwner(ctx, p.Email)
	if err != nil {
		return nil, err
	}
	return r.GetByAuthID(ctx, owner)
}

func (r *ProfileRepo) emailOwner(ctx context.Context, email string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailsTable),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Item == nil {
		return "", fmt.Errorf("email guard not found: %w", domain.ErrNotFound)
	}
	var g emailGuard
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return "", err
	}
	return g.AuthID, nil
}

// Update applies updates to an existing profile and returns the new row.
func (r *ProfileRepo) Update(ctx context.Context, authID string, updates map[string]interface{}) (*domain.Profile, error) {
	if _, ok := updates[fieldUpdatedAt]; !ok {
		updates[fieldUpdatedAt] = time.Now().UTC()
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldAuthID
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldAuthID, authID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
