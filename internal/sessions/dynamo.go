package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/models"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// dynamoItem is the persisted shape. The token attribute is named
// encrypted_user_token because the deployed callback function reads it.
type dynamoItem struct {
	SessionID      string `dynamodbav:"session_id"`
	EncryptedToken string `dynamodbav:"encrypted_user_token"`
	Status         string `dynamodbav:"status"`
	Error          string `dynamodbav:"error,omitempty"`
	TTL            int64  `dynamodbav:"ttl"`
}

func (it *dynamoItem) toModel() *models.AuthSession {
	return &models.AuthSession{
		SessionID:      it.SessionID,
		EncryptedToken: it.EncryptedToken,
		Status:         models.Status(it.Status),
		Error:          it.Error,
		ExpiresAt:      time.Unix(it.TTL, 0),
	}
}

// "status", "error" and "ttl" are DynamoDB reserved words.
var dynamoNames = map[string]string{
	"#status": "status",
	"#error":  "error",
	"#ttl":    "ttl",
}

// waitTableActive is a seam for testing the table waiter.
var waitTableActive = func(ctx context.Context, client DynamoAPI, table string, maxWait time.Duration) error {
	return dynamodb.NewTableExistsWaiter(client).Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, maxWait)
}

// DynamoStore keeps sessions in a DynamoDB table keyed by session_id with
// native TTL on the ttl attribute. DynamoDB deletes expired items lazily
// (up to days later), so every read re-checks ttl.
type DynamoStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

func NewDynamoStore(client DynamoAPI, table string, opts ...Option) *DynamoStore {
	o := buildOptions(opts)
	return &DynamoStore{client: client, table: table, now: o.now}
}

func numberValue(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func (s *DynamoStore) key(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"session_id": &types.AttributeValueMemberS{Value: sessionID},
	}
}

func (s *DynamoStore) Put(ctx context.Context, session *models.AuthSession) error {
	now := s.now()
	if err := session.Validate(now); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(dynamoItem{
		SessionID:      session.SessionID,
		EncryptedToken: session.EncryptedToken,
		Status:         string(session.Status),
		TTL:            session.ExpiresAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(session_id) OR #ttl <= :now"),
		ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": numberValue(now.Unix()),
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("dynamodb put: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, common.ErrorNotFound
	}

	var it dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	session := it.toModel()
	if session.Expired(s.now()) {
		return nil, common.ErrorNotFound
	}
	return session, nil
}

func (s *DynamoStore) MarkComplete(ctx context.Context, sessionID string) error {
	return s.finish(ctx, sessionID, "SET #status = :status REMOVE #error", map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(models.StatusComplete)},
	})
}

func (s *DynamoStore) MarkFailed(ctx context.Context, sessionID string, reason string) error {
	return s.finish(ctx, sessionID, "SET #status = :status, #error = :error", map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(models.StatusFailed)},
		":error":  &types.AttributeValueMemberS{Value: reason},
	})
}

func (s *DynamoStore) finish(ctx context.Context, sessionID, update string, values map[string]types.AttributeValue) error {
	now := s.now()
	values[":pending"] = &types.AttributeValueMemberS{Value: string(models.StatusPending)}
	values[":now"] = numberValue(now.Unix())

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.table),
		Key:                                 s.key(sessionID),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String("attribute_exists(session_id) AND #status = :pending AND #ttl > :now"),
		ExpressionAttributeNames:            dynamoNames,
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return fmt.Errorf("dynamodb update: %w", err)
	}
	if len(ccf.Item) == 0 {
		return common.ErrorNotFound
	}
	var it dynamoItem
	if err := attributevalue.UnmarshalMap(ccf.Item, &it); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}
	if it.toModel().Expired(now) {
		return common.ErrorNotFound
	}
	return common.ErrAlreadyTerminal
}

// EnsureTable fetches the table description and creates the table (on-demand
// billing, TTL on "ttl") when it does not exist yet.
func (s *DynamoStore) EnsureTable(ctx context.Context, maxWait time.Duration) (created bool, err error) {
	_, err = s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return false, nil
	}
	var rnf *types.ResourceNotFoundException
	if !errors.As(err, &rnf) {
		return false, fmt.Errorf("describe table: %w", err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("session_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("session_id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return false, fmt.Errorf("create table: %w", err)
		}
	}

	if err := waitTableActive(ctx, s.client, s.table, maxWait); err != nil {
		return false, fmt.Errorf("wait table: %w", err)
	}

	_, err = s.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(s.table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("ttl"),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		return false, fmt.Errorf("enable ttl: %w", err)
	}
	return true, nil
}
