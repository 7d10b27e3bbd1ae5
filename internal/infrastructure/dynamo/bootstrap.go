package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-pregnancy-family/internal/config"
)

// Bootstrap creates all DynamoDB tables and GSIs if they don't already exist.
// Safe to call on every startup: existing tables are skipped.
// It returns the number of tables that could not be created.
func Bootstrap(ctx context.Context, client API, tables config.DynamoTables) int {
	failed := 0
	create := func(in *dynamodb.CreateTableInput) {
		if !createTable(ctx, client, in) {
			failed++
		}
	}

	create(hashTable(tables.Users, "user_id"))
	create(hashTable(tables.UserPhones, "phone"))

	sessions := hashTable(tables.Sessions, "session_id", "user_id")
	sessions.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{
		gsi("user_id-index", "user_id", ""),
	}
	create(sessions)
	enableTTL(ctx, client, tables.Sessions, "purge_at")

	create(&dynamodb.CreateTableInput{
		TableName:   aws.String(tables.VerificationCodes),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("phone"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("purpose"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("phone"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("purpose"), KeyType: types.KeyTypeRange},
		},
	})
	enableTTL(ctx, client, tables.VerificationCodes, "purge_at")

	create(hashTable(tables.Families, "family_id"))
	create(hashTable(tables.InviteCodes, "code"))

	members := hashTable(tables.FamilyMembers, "user_id", "family_id")
	members.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{
		gsi("family_id-index", "family_id", ""),
	}
	create(members)

	notifications := hashTable(tables.Notifications, "notification_id", "user_id", "created_at")
	notifications.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{
		gsi("user_id-created_at-index", "user_id", "created_at"),
	}
	create(notifications)

	return failed
}

// hashTable describes an on-demand table keyed by hashKey. extra names further string
// attributes that GSIs key on.
func hashTable(name, hashKey string, extra ...string) *dynamodb.CreateTableInput {
	defs := []types.AttributeDefinition{
		{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
	}
	for _, a := range extra {
		defs = append(defs, types.AttributeDefinition{AttributeName: aws.String(a), AttributeType: types.ScalarAttributeTypeS})
	}
	return &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		BillingMode:          types.BillingModePayPerRequest,
		AttributeDefinitions: defs,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
	}
}

// gsi builds a GSI descriptor. If sortKey is empty, only a hash key is added.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func createTable(ctx context.Context, client API, input *dynamodb.CreateTableInput) bool {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if errors.As(err, &riue) {
			return true
		}
		slog.Warn("could not create table", "table", *input.TableName, "err", err)
		return false
	}
	slog.Info("created table", "table", *input.TableName)
	return true
}

func enableTTL(ctx context.Context, client API, tableName, ttlAttr string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		slog.Warn("could not enable TTL", "table", tableName, "err", err)
	}
}
