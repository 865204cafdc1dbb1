package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// DefaultTable is the table name used when none is configured
const DefaultTable = "NotesTable"

// Client is the subset of the DynamoDB API used by the repository
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	dynamodb.QueryAPIClient
}

// Config options for building a DynamoDB client
type Config struct {
	Table           string
	Region          string
	Endpoint        string // Optional endpoint, e.g. DynamoDB Local
	AccessKeyID     string
	SecretAccessKey string
}

// Repository implements simplenotes.NoteRepository on a DynamoDB table with
// partition key userId and sort key noteId
type Repository struct {
	client Client
	table  string
}

var _ simplenotes.NoteRepository = (*Repository)(nil)

// New creates a repository over an existing client
func New(client Client, table string) *Repository {
	if table == "" {
		table = DefaultTable
	}
	return &Repository{client: client, table: table}
}

// NewClient builds a DynamoDB client from config
func NewClient(ctx context.Context, config Config) (*dynamodb.Client, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	}), nil
}

// EnsureTable creates the notes table with on-demand billing if it does not exist
func EnsureTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table %s: %w", table, err)
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("userId"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("noteId"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("userId"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("noteId"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

func (r *Repository) Put(ctx context.Context, note *simplenotes.Note) error {
	item, err := attributevalue.MarshalMap(toRecord(note))
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return r.handleDynamoError("put note", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, ownerID, noteID string) (*simplenotes.Note, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            noteKey(ownerID, noteID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, r.handleDynamoError("get note", err)
	}
	if len(out.Item) == 0 {
		return nil, simplenotes.ErrNoteNotFound
	}

	var rec noteRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal note: %w", err)
	}
	return rec.toNote()
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*simplenotes.Note, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.table),
		KeyConditionExpression:   aws.String("#userId = :userId"),
		ExpressionAttributeNames: map[string]string{"#userId": "userId"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: ownerID},
		},
	})

	notes := []*simplenotes.Note{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, r.handleDynamoError("list notes", err)
		}

		var records []noteRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
		}
		for _, rec := range records {
			note, err := rec.toNote()
			if err != nil {
				return nil, err
			}
			notes = append(notes, note)
		}
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}

// Patch rewrites title, content, updatedAt and the attachment attributes in a
// single conditional UpdateItem. A nil attachment removes the file attributes.
func (r *Repository) Patch(ctx context.Context, ownerID, noteID string, patch simplenotes.NotePatch) error {
	_, err := r.client.UpdateItem(ctx, patchInput(r.table, ownerID, noteID, patch))
	if err != nil {
		return r.handleDynamoError("patch note", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, ownerID, noteID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       noteKey(ownerID, noteID),
	})
	if err != nil {
		return r.handleDynamoError("delete note", err)
	}
	return nil
}

func patchInput(table, ownerID, noteID string, patch simplenotes.NotePatch) *dynamodb.UpdateItemInput {
	names := map[string]string{
		"#noteId":    "noteId",
		"#title":     "title",
		"#content":   "content",
		"#updatedAt": "updatedAt",
		"#fileKey":   "fileKey",
		"#fileName":  "fileName",
		"#fileType":  "fileType",
		"#fileUrl":   "fileUrl",
	}
	values := map[string]types.AttributeValue{
		":title":     &types.AttributeValueMemberS{Value: patch.Title},
		":content":   &types.AttributeValueMemberS{Value: patch.Content},
		":updatedAt": &types.AttributeValueMemberS{Value: formatTime(patch.UpdatedAt)},
	}

	update := "SET #title = :title, #content = :content, #updatedAt = :updatedAt"
	if a := patch.Attachment; a != nil {
		update += ", #fileKey = :fileKey, #fileName = :fileName, #fileType = :fileType, #fileUrl = :fileUrl"
		values[":fileKey"] = &types.AttributeValueMemberS{Value: a.BlobKey}
		values[":fileName"] = &types.AttributeValueMemberS{Value: a.FileName}
		values[":fileType"] = &types.AttributeValueMemberS{Value: a.ContentType}
		values[":fileUrl"] = &types.AttributeValueMemberS{Value: a.AccessURL}
	} else {
		update += " REMOVE #fileKey, #fileName, #fileType, #fileUrl"
	}

	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       noteKey(ownerID, noteID),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("attribute_exists(#noteId)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
}

func noteKey(ownerID, noteID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: ownerID},
		"noteId": &types.AttributeValueMemberS{Value: noteID},
	}
}

// Error handling helper
func (r *Repository) handleDynamoError(operation string, err error) error {
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return simplenotes.ErrNoteNotFound
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("table %s does not exist: %w", r.table, err)
	}
	return fmt.Errorf("dynamodb error in %s: %w", operation, err)
}
