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

// UserRepo provides typed DynamoDB operations for the users table.
// Phone uniqueness is held by a second table keyed by phone.
type UserRepo struct {
	client     API
	tableName  string
	phoneTable string
}

func NewUserRepo(client API, tableName, phoneTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, phoneTable: phoneTable}
}

type phoneItem struct {
	Phone  string `dynamodbav:"phone"`
	UserID string `dynamodbav:"user_id"`
}

// Create writes the user and reserves its phone in one transaction.
// A phone that is already reserved fails with domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	phone, err := attributevalue.MarshalMap(phoneItem{Phone: u.Phone, UserID: u.UserID})
	if err != nil {
		return fmt.Errorf("marshal phone: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.phoneTable),
				Item:                phone,
				ConditionExpression: aws.String("attribute_not_exists(phone)"),
			}},
		},
	})
	if idx, ok := cancelledAt(err); ok && len(idx) > 0 {
		return fmt.Errorf("phone %s already registered: %w", u.Phone, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("user_id", userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByPhone resolves the phone reservation, then loads the user.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.phoneTable),
		Key:            strKey("phone", phone),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get phone: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("phone not registered: %w", domain.ErrNotFound)
	}
	var p phoneItem
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return r.Get(ctx, p.UserID)
}

// Update sets the given fields on an existing user and returns the new item.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) (*domain.User, error) {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Values[":uid"] = str(userID)
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("user_id = :uid"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetStatus(ctx context.Context, userID string, status domain.UserStatus) (*domain.User, error) {
	return r.Update(ctx, userID, map[string]interface{}{fieldStatus: status})
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.Update(ctx, userID, map[string]interface{}{fieldLastLoginAt: at.UTC()})
	return err
}
