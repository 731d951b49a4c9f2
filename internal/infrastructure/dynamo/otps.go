package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/alumni-api/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var errOTPContention = errors.New("otp record changed concurrently")

// OTPRepo keeps one live OTP per email. Verification is serialized with an
// optimistic version check on every conditional write.
type OTPRepo struct {
	client    API
	tableName string
}

func NewOTPRepo(client API, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

// Put replaces any live code for the email.
func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OTPRepo) Apply(ctx context.Context, email string, fn domain.OTPMutator) error {
	for i := 0; i < maxConditionalRetries; i++ {
		rec, err := r.get(ctx, email)
		if err != nil {
			return err
		}
		if rec == nil {
			fn(nil)
			return nil
		}
		prev := rec.Version
		switch fn(rec) {
		case domain.OTPKeep:
			return nil
		case domain.OTPSave:
			rec.Version = prev + 1
			err = r.putIfVersion(ctx, rec, prev)
		case domain.OTPDelete:
			err = r.deleteIfVersion(ctx, email, prev)
		}
		if err == nil {
			return nil
		}
		if !isConditionalCheckFailed(err) {
			return err
		}
	}
	return errOTPContention
}

func (r *OTPRepo) get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *OTPRepo) putIfVersion(ctx context.Context, rec *domain.OTPRecord, version int64) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       aws.String("#ver = :v"),
		ExpressionAttributeNames:  map[string]string{"#ver": fieldVersion},
		ExpressionAttributeValues: versionValue(version),
	})
	return err
}

func (r *OTPRepo) deleteIfVersion(ctx context.Context, email string, version int64) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldEmail, email),
		ConditionExpression:       aws.String("#ver = :v"),
		ExpressionAttributeNames:  map[string]string{"#ver": fieldVersion},
		ExpressionAttributeValues: versionValue(version),
	})
	return err
}

func versionValue(v int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)},
	}
}
