package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-pregnancy-family/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func allTables() config.DynamoTables {
	return config.DynamoTables{
		Users: "users", UserPhones: "user_phones", Sessions: "sessions",
		VerificationCodes: "verification_codes", Families: "families",
		InviteCodes: "invite_codes", FamilyMembers: "family_members", Notifications: "notifications",
	}
}

func TestBootstrap_ExistingTablesAreFine(t *testing.T) {
	api := &mockAPI{}
	api.On("CreateTable", mock.Anything, mock.Anything).Return(&types.ResourceInUseException{})
	api.On("UpdateTimeToLive", mock.Anything, mock.Anything).Return(nil)

	failed := Bootstrap(context.Background(), api, allTables())

	assert.Zero(t, failed)
	api.AssertNumberOfCalls(t, "CreateTable", 8)
	api.AssertNumberOfCalls(t, "UpdateTimeToLive", 2)
}

func TestBootstrap_CountsFailures(t *testing.T) {
	api := &mockAPI{}
	api.On("CreateTable", mock.Anything, mock.MatchedBy(func(in *dynamodb.CreateTableInput) bool {
		return *in.TableName == "families"
	})).Return(errors.New("access denied"))
	api.On("CreateTable", mock.Anything, mock.Anything).Return(nil)
	api.On("UpdateTimeToLive", mock.Anything, mock.Anything).Return(nil)

	assert.Equal(t, 1, Bootstrap(context.Background(), api, allTables()))
}

func TestBootstrap_MembershipIndexedByFamily(t *testing.T) {
	api := &mockAPI{}
	var members *dynamodb.CreateTableInput
	api.On("CreateTable", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(1).(*dynamodb.CreateTableInput)
		if *in.TableName == "family_members" {
			members = in
		}
	}).Return(nil)
	api.On("UpdateTimeToLive", mock.Anything, mock.Anything).Return(nil)

	Bootstrap(context.Background(), api, allTables())

	if assert.NotNil(t, members) {
		assert.Equal(t, "user_id", *members.KeySchema[0].AttributeName)
		assert.Equal(t, "family_id-index", *members.GlobalSecondaryIndexes[0].IndexName)
	}
}
