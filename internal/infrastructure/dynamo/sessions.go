package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-pregnancy-family/internal/domain"
)

// SessionRepo provides typed DynamoDB operations for the sessions table.
type SessionRepo struct {
	client    API
	tableName string
}

func NewSessionRepo(client API, tableName string) *SessionRepo {
	return &SessionRepo{client: client, tableName: tableName}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(session_id)"),
	})
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("session_id", sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	var s domain.Session
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Disable revokes one session. Revoking an unknown or already revoked session is a no-op.
func (r *SessionRepo) Disable(ctx context.Context, sessionID string) error {
	_, err := r.client.UpdateItem(ctx, disableInput(r.tableName, sessionID))
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("disable session: %w", err)
	}
	return nil
}

// Rotate revokes prev and stores next in one transaction.
// If prev is no longer enabled nothing is written and domain.ErrCondition is returned.
func (r *SessionRepo) Rotate(ctx context.Context, prevID string, next *domain.Session) error {
	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	in := disableInput(r.tableName, prevID)
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 in.TableName,
				Key:                       in.Key,
				UpdateExpression:          in.UpdateExpression,
				ConditionExpression:       in.ConditionExpression,
				ExpressionAttributeNames:  in.ExpressionAttributeNames,
				ExpressionAttributeValues: in.ExpressionAttributeValues,
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(session_id)"),
			}},
		},
	})
	if idx, ok := cancelledAt(err); ok && len(idx) > 0 {
		return fmt.Errorf("session %s not active: %w", prevID, domain.ErrCondition)
	}
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	return nil
}

// DisableByUser revokes every enabled session of the user.
func (r *SessionRepo) DisableByUser(ctx context.Context, userID string) error {
	var firstErr error
	var start map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("user_id-index"),
			KeyConditionExpression: aws.String("user_id = :uid"),
			FilterExpression:       aws.String("#e = :t"),
			ExpressionAttributeNames: map[string]string{
				"#e": fieldEnable,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": str(userID),
				":t":   boolean(true),
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return fmt.Errorf("query sessions: %w", err)
		}
		for _, item := range out.Items {
			sidAttr, ok := item["session_id"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if err := r.Disable(ctx, sidAttr.Value); err != nil {
				slog.Warn("failed to disable session", "session_id", sidAttr.Value, "user_id", userID, "err", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return firstErr
		}
		start = out.LastEvaluatedKey
	}
}

func disableInput(table, sessionID string) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 strKey("session_id", sessionID),
		UpdateExpression:    aws.String("SET #e = :f, #u = :now"),
		ConditionExpression: aws.String("#e = :t"),
		ExpressionAttributeNames: map[string]string{
			"#e": fieldEnable,
			"#u": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f":   boolean(false),
			":t":   boolean(true),
			":now": str(time.Now().UTC().Format(time.RFC3339Nano)),
		},
	}
}
