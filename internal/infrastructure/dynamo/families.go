package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/domain"
)

// FamilyRepo covers the families, invite_codes and family_members tables.
// Every write that touches more than one of them is a single transaction.
type FamilyRepo struct {
	client        API
	families      string
	inviteCodes   string
	familyMembers string
}

func NewFamilyRepo(client API, tables config.DynamoTables) *FamilyRepo {
	return &FamilyRepo{
		client:        client,
		families:      tables.Families,
		inviteCodes:   tables.InviteCodes,
		familyMembers: tables.FamilyMembers,
	}
}

// Create stores a new family, reserves its invite code and records the owner's membership.
// Fails with domain.ErrInviteCodeTaken or domain.ErrAlreadyMember when the matching guard trips.
func (r *FamilyRepo) Create(ctx context.Context, f *domain.Family, owner *domain.FamilyMembership) error {
	family, err := attributevalue.MarshalMap(f)
	if err != nil {
		return fmt.Errorf("marshal family: %w", err)
	}
	code, err := attributevalue.MarshalMap(domain.InviteCode{Code: f.InviteCode, FamilyID: f.FamilyID})
	if err != nil {
		return fmt.Errorf("marshal invite code: %w", err)
	}
	member, err := attributevalue.MarshalMap(owner)
	if err != nil {
		return fmt.Errorf("marshal membership: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.families),
				Item:                family,
				ConditionExpression: aws.String("attribute_not_exists(family_id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.inviteCodes),
				Item:                code,
				ConditionExpression: aws.String("attribute_not_exists(code)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.familyMembers),
				Item:                member,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
		},
	})
	if idx, ok := cancelledAt(err); ok {
		switch {
		case contains(idx, 2):
			return fmt.Errorf("user %s: %w", owner.UserID, domain.ErrAlreadyMember)
		case contains(idx, 1):
			return fmt.Errorf("code %s: %w", f.InviteCode, domain.ErrInviteCodeTaken)
		case len(idx) > 0:
			return fmt.Errorf("family %s: %w", f.FamilyID, domain.ErrConflict)
		}
	}
	if err != nil {
		return fmt.Errorf("create family: %w", err)
	}
	return nil
}

func (r *FamilyRepo) Get(ctx context.Context, familyID string) (*domain.Family, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.families),
		Key:            strKey("family_id", familyID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("family not found: %w", domain.ErrNotFound)
	}
	var f domain.Family
	if err := attributevalue.UnmarshalMap(out.Item, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FamilyIDByInviteCode resolves an invite code to its family.
func (r *FamilyRepo) FamilyIDByInviteCode(ctx context.Context, code string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.inviteCodes),
		Key:            strKey("code", code),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get invite code: %w", err)
	}
	if out.Item == nil {
		return "", fmt.Errorf("invite code not found: %w", domain.ErrNotFound)
	}
	var ic domain.InviteCode
	if err := attributevalue.UnmarshalMap(out.Item, &ic); err != nil {
		return "", err
	}
	return ic.FamilyID, nil
}

func (r *FamilyRepo) Membership(ctx context.Context, userID string) (*domain.FamilyMembership, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.familyMembers),
		Key:            strKey("user_id", userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("membership not found: %w", domain.ErrNotFound)
	}
	var m domain.FamilyMembership
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Members lists the memberships of a family via the family_id GSI.
func (r *FamilyRepo) Members(ctx context.Context, familyID string) ([]domain.FamilyMembership, error) {
	members := []domain.FamilyMembership{}
	var start map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.familyMembers),
			IndexName:              aws.String("family_id-index"),
			KeyConditionExpression: aws.String("family_id = :fid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":fid": str(familyID),
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query members: %w", err)
		}
		var page []domain.FamilyMembership
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		members = append(members, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return members, nil
		}
		start = out.LastEvaluatedKey
	}
}

// Join records m and increments the family's member count in one transaction.
// domain.ErrAlreadyMember: the user already holds a membership.
// domain.ErrCondition: the family is inactive or already has limit members.
func (r *FamilyRepo) Join(ctx context.Context, m *domain.FamilyMembership, limit int) error {
	member, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal membership: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.familyMembers),
				Item:                member,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			{Update: &types.Update{
				TableName:           aws.String(r.families),
				Key:                 strKey("family_id", m.FamilyID),
				UpdateExpression:    aws.String("SET #n = #n + :one, #u = :now"),
				ConditionExpression: aws.String("#a = :t AND #n < :limit"),
				ExpressionAttributeNames: map[string]string{
					"#n": fieldMemberCount,
					"#a": fieldActive,
					"#u": fieldUpdatedAt,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":one":   num(1),
					":t":     boolean(true),
					":limit": num(int64(limit)),
					":now":   str(m.JoinedAt.UTC().Format(time.RFC3339Nano)),
				},
			}},
		},
	})
	if idx, ok := cancelledAt(err); ok {
		switch {
		case contains(idx, 0):
			return fmt.Errorf("user %s: %w", m.UserID, domain.ErrAlreadyMember)
		case contains(idx, 1):
			return fmt.Errorf("family %s not joinable: %w", m.FamilyID, domain.ErrCondition)
		}
	}
	if err != nil {
		return fmt.Errorf("join family: %w", err)
	}
	return nil
}

// Leave removes m and decrements the member count, provided the family still has expectCount
// members. When m is the last member the family is deactivated in the same transaction.
// A non-empty successor takes over ownership from m atomically; the transaction only commits
// while m is still the owner and the successor still belongs to the family.
// domain.ErrNotFound: the membership is gone. domain.ErrCondition: the count, the owner or the
// successor's membership moved.
func (r *FamilyRepo) Leave(ctx context.Context, m *domain.FamilyMembership, expectCount int, successor string, now time.Time) error {
	update := "SET #n = #n - :one, #u = :now"
	cond := "#n = :cnt"
	values := map[string]types.AttributeValue{
		":one": num(1),
		":cnt": num(int64(expectCount)),
		":now": str(now.UTC().Format(time.RFC3339Nano)),
	}
	names := map[string]string{"#n": fieldMemberCount, "#u": fieldUpdatedAt}
	if expectCount == 1 {
		update += ", #a = :f"
		values[":f"] = boolean(false)
		names["#a"] = fieldActive
	}
	if successor != "" {
		update += ", #o = :next"
		cond += " AND #o = :leaving"
		values[":next"] = str(successor)
		values[":leaving"] = str(m.UserID)
		names["#o"] = fieldOwnerID
	}
	items := []types.TransactWriteItem{
		{Delete: &types.Delete{
			TableName:           aws.String(r.familyMembers),
			Key:                 strKey("user_id", m.UserID),
			ConditionExpression: aws.String("family_id = :fid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":fid": str(m.FamilyID),
			},
		}},
		{Update: &types.Update{
			TableName:                 aws.String(r.families),
			Key:                       strKey("family_id", m.FamilyID),
			UpdateExpression:          aws.String(update),
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}},
	}
	if successor != "" {
		items = append(items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:           aws.String(r.familyMembers),
			Key:                 strKey("user_id", successor),
			ConditionExpression: aws.String("family_id = :fid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":fid": str(m.FamilyID),
			},
		}})
	}
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if idx, ok := cancelledAt(err); ok {
		switch {
		case contains(idx, 0):
			return fmt.Errorf("user %s: %w", m.UserID, domain.ErrNotFound)
		case contains(idx, 1):
			return fmt.Errorf("family %s changed: %w", m.FamilyID, domain.ErrCondition)
		case contains(idx, 2):
			return fmt.Errorf("successor %s left: %w", successor, domain.ErrCondition)
		}
	}
	if err != nil {
		return fmt.Errorf("leave family: %w", err)
	}
	return nil
}

// RotateInviteCode swaps the family's invite code for next. The old code is released and the
// new one reserved in the same transaction. domain.ErrInviteCodeTaken: next is in use.
// domain.ErrCondition: the family's code is no longer prev.
func (r *FamilyRepo) RotateInviteCode(ctx context.Context, familyID, prev, next string, expiresAt time.Time) error {
	code, err := attributevalue.MarshalMap(domain.InviteCode{Code: next, FamilyID: familyID})
	if err != nil {
		return fmt.Errorf("marshal invite code: %w", err)
	}
	exp, err := attributevalue.Marshal(expiresAt.UTC())
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.inviteCodes),
				Item:                code,
				ConditionExpression: aws.String("attribute_not_exists(code)"),
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.inviteCodes),
				Key:       strKey("code", prev),
			}},
			{Update: &types.Update{
				TableName:           aws.String(r.families),
				Key:                 strKey("family_id", familyID),
				UpdateExpression:    aws.String("SET #c = :next, #e = :exp, #u = :now"),
				ConditionExpression: aws.String("#c = :prev"),
				ExpressionAttributeNames: map[string]string{
					"#c": fieldInviteCode,
					"#e": fieldInviteExp,
					"#u": fieldUpdatedAt,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":next": str(next),
					":prev": str(prev),
					":exp":  exp,
					":now":  str(time.Now().UTC().Format(time.RFC3339Nano)),
				},
			}},
		},
	})
	if idx, ok := cancelledAt(err); ok {
		switch {
		case contains(idx, 0):
			return fmt.Errorf("code %s: %w", next, domain.ErrInviteCodeTaken)
		case contains(idx, 2):
			return fmt.Errorf("family %s code changed: %w", familyID, domain.ErrCondition)
		}
	}
	if err != nil {
		return fmt.Errorf("rotate invite code: %w", err)
	}
	return nil
}

// Update sets the given fields on an existing family and returns the new item.
func (r *FamilyRepo) Update(ctx context.Context, familyID string, updates map[string]interface{}) (*domain.Family, error) {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Values[":fid"] = str(familyID)
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.families),
		Key:                       strKey("family_id", familyID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("family_id = :fid"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("family not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update family: %w", err)
	}
	var f domain.Family
	if err := attributevalue.UnmarshalMap(out.Attributes, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
