package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-pregnancy-family/internal/domain"
)

// VerificationRepo stores phone verification codes.
// PK: phone, SK: purpose. One item per (phone, purpose); a new code overwrites the previous one.
type VerificationRepo struct {
	client    API
	tableName string
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) key(phone string, purpose domain.CodePurpose) map[string]types.AttributeValue {
	return compositeKey("phone", phone, "purpose", string(purpose))
}

// Save writes v unless the previous code for the same key was issued less than cooldown ago,
// in which case domain.ErrConflict is returned.
func (r *VerificationRepo) Save(ctx context.Context, v *domain.VerificationCode, cooldown time.Duration) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(phone) OR issued_at <= :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": num(v.IssuedAt - cooldown.Milliseconds()),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("code for %s resent too soon: %w", v.Phone, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put verification: %w", err)
	}
	return nil
}

func (r *VerificationRepo) Get(ctx context.Context, phone string, purpose domain.CodePurpose) (*domain.VerificationCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(phone, purpose),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get verification: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	var v domain.VerificationCode
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkDelivered flags the code issued at issuedAt as sent. A newer code is left untouched.
func (r *VerificationRepo) MarkDelivered(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      r.key(phone, purpose),
		UpdateExpression:         aws.String("SET #d = :t"),
		ConditionExpression:      aws.String("issued_at = :iat"),
		ExpressionAttributeNames: map[string]string{"#d": fieldDelivered},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   boolean(true),
			":iat": num(issuedAt),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("verification superseded: %w", domain.ErrCondition)
	}
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// Discard deletes the code issued at issuedAt. A newer code is left untouched.
func (r *VerificationRepo) Discard(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 r.key(phone, purpose),
		ConditionExpression: aws.String("issued_at = :iat"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":iat": num(issuedAt),
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("discard verification: %w", err)
	}
	return nil
}

// Consume marks the code used if it is delivered, unconsumed, unexpired, under the attempt limit
// and matches codeHash. Any unmet condition returns domain.ErrCondition, so of two concurrent
// consumers exactly one succeeds.
func (r *VerificationRepo) Consume(ctx context.Context, phone string, purpose domain.CodePurpose, codeHash string, now time.Time, maxAttempts int) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              r.key(phone, purpose),
		UpdateExpression: aws.String("SET #c = :t"),
		ConditionExpression: aws.String(
			"#c = :f AND #d = :t AND code_hash = :h AND expires_at > :now AND #a < :max"),
		ExpressionAttributeNames: map[string]string{
			"#c": fieldConsumed,
			"#d": fieldDelivered,
			"#a": fieldAttempts,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   boolean(true),
			":f":   boolean(false),
			":h":   str(codeHash),
			":now": num(now.UnixMilli()),
			":max": num(int64(maxAttempts)),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("verification not consumable: %w", domain.ErrCondition)
	}
	if err != nil {
		return fmt.Errorf("consume verification: %w", err)
	}
	return nil
}

// RecordFailure counts one wrong attempt against the code issued at issuedAt.
func (r *VerificationRepo) RecordFailure(ctx context.Context, phone string, purpose domain.CodePurpose, issuedAt int64) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      r.key(phone, purpose),
		UpdateExpression:         aws.String("ADD #a :one"),
		ConditionExpression:      aws.String("issued_at = :iat"),
		ExpressionAttributeNames: map[string]string{"#a": fieldAttempts},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": num(1),
			":iat": num(issuedAt),
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("record verification failure: %w", err)
	}
	return nil
}
