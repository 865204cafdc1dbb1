package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// fakeClient keeps items in memory and understands the exact expressions
// the repository issues.
type fakeClient struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	queries  int
	failWith error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: map[string]map[string]types.AttributeValue{}, pageSize: 2}
}

func itemID(key map[string]types.AttributeValue) string {
	return key["userId"].(*types.AttributeValueMemberS).Value + "|" + key["noteId"].(*types.AttributeValueMemberS).Value
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.items[itemID(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemID(in.Key)]}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	updated := map[string]types.AttributeValue{}
	for k, v := range item {
		updated[k] = v
	}
	for placeholder, v := range in.ExpressionAttributeValues {
		updated[strings.TrimPrefix(placeholder, ":")] = v
	}
	if strings.Contains(aws.ToString(in.UpdateExpression), "REMOVE") {
		for _, attr := range []string{"fileKey", "fileName", "fileType", "fileUrl"} {
			delete(updated, attr)
		}
	}
	f.items[itemID(in.Key)] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemID(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	owner := in.ExpressionAttributeValues[":userId"].(*types.AttributeValueMemberS).Value

	var ids []string
	for id := range f.items {
		if strings.HasPrefix(id, owner+"|") {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	start := 0
	if in.ExclusiveStartKey != nil {
		last := itemID(in.ExclusiveStartKey)
		for i, id := range ids {
			if id == last {
				start = i + 1
			}
		}
	}
	end := start + f.pageSize
	if end > len(ids) {
		end = len(ids)
	}

	out := &dynamodb.QueryOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, f.items[id])
	}
	if end < len(ids) {
		last := f.items[ids[end-1]]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"userId": last["userId"], "noteId": last["noteId"]}
	}
	return out, nil
}

func sampleNote(owner, id string, created time.Time) *simplenotes.Note {
	return &simplenotes.Note{
		OwnerID:   owner,
		NoteID:    id,
		Title:     "title",
		Content:   "content",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestRepository_PutGet(t *testing.T) {
	client := newFakeClient()
	repo := New(client, "")
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

	note := sampleNote("demo-user", "n1", created)
	note.Attachment = &simplenotes.Attachment{
		BlobKey:     "notes/demo-user/ab/cd_a.txt",
		FileName:    "a.txt",
		ContentType: "text/plain",
		AccessURL:   "https://bucket.test/a",
	}
	require.NoError(t, repo.Put(ctx, note))

	item := client.items["demo-user|n1"]
	assert.Equal(t, "2024-05-01T12:00:00.123456789Z", item["createdAt"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "notes/demo-user/ab/cd_a.txt", item["fileKey"].(*types.AttributeValueMemberS).Value)

	got, err := repo.Get(ctx, "demo-user", "n1")
	require.NoError(t, err)
	assert.Equal(t, note, got)

	_, err = repo.Get(ctx, "demo-user", "missing")
	assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)
}

func TestRepository_PutWithoutAttachmentOmitsFileAttributes(t *testing.T) {
	client := newFakeClient()
	repo := New(client, "NotesTable")
	require.NoError(t, repo.Put(context.Background(), sampleNote("u", "n", time.Now())))

	item := client.items["u|n"]
	for _, attr := range []string{"fileKey", "fileName", "fileType", "fileUrl"} {
		_, present := item[attr]
		assert.False(t, present, attr)
	}
}

func TestRepository_ListByOwnerPaginates(t *testing.T) {
	client := newFakeClient()
	repo := New(client, "")
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Put(ctx, sampleNote("u", fmt.Sprintf("n%d", i), base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Put(ctx, sampleNote("other", "x", base)))

	notes, err := repo.ListByOwner(ctx, "u")
	require.NoError(t, err)
	require.Len(t, notes, 5)
	assert.Equal(t, "n4", notes[0].NoteID)
	assert.Equal(t, "n0", notes[4].NoteID)
	assert.Equal(t, 3, client.queries)

	empty, err := repo.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRepository_Patch(t *testing.T) {
	client := newFakeClient()
	repo := New(client, "")
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	note := sampleNote("u", "n", created)
	note.Attachment = &simplenotes.Attachment{BlobKey: "old", FileName: "old.txt", ContentType: "text/plain"}
	require.NoError(t, repo.Put(ctx, note))

	t.Run("replace attachment", func(t *testing.T) {
		updatedAt := created.Add(time.Hour)
		require.NoError(t, repo.Patch(ctx, "u", "n", simplenotes.NotePatch{
			Title:      "T2",
			Content:    "C2",
			Attachment: &simplenotes.Attachment{BlobKey: "new", FileName: "new.csv", ContentType: "text/csv", AccessURL: "u"},
			UpdatedAt:  updatedAt,
		}))

		got, err := repo.Get(ctx, "u", "n")
		require.NoError(t, err)
		assert.Equal(t, "T2", got.Title)
		assert.Equal(t, "new", got.Attachment.BlobKey)
		assert.Equal(t, created, got.CreatedAt)
		assert.Equal(t, updatedAt, got.UpdatedAt)
	})

	t.Run("remove attachment", func(t *testing.T) {
		require.NoError(t, repo.Patch(ctx, "u", "n", simplenotes.NotePatch{Title: "T3", Content: "C3", UpdatedAt: created}))
		got, err := repo.Get(ctx, "u", "n")
		require.NoError(t, err)
		assert.Nil(t, got.Attachment)
	})

	t.Run("missing note", func(t *testing.T) {
		err := repo.Patch(ctx, "u", "missing", simplenotes.NotePatch{UpdatedAt: created})
		assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)
		_, exists := client.items["u|missing"]
		assert.False(t, exists)
	})
}

func TestPatchInput(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	withFile := patchInput("NotesTable", "u", "n", simplenotes.NotePatch{
		Title:      "t",
		Attachment: &simplenotes.Attachment{BlobKey: "k"},
		UpdatedAt:  at,
	})
	assert.Equal(t, "NotesTable", aws.ToString(withFile.TableName))
	assert.Equal(t, "attribute_exists(#noteId)", aws.ToString(withFile.ConditionExpression))
	assert.NotContains(t, aws.ToString(withFile.UpdateExpression), "REMOVE")
	assert.Contains(t, aws.ToString(withFile.UpdateExpression), "#fileKey = :fileKey")

	withoutFile := patchInput("NotesTable", "u", "n", simplenotes.NotePatch{Title: "t", UpdatedAt: at})
	assert.Equal(t,
		"SET #title = :title, #content = :content, #updatedAt = :updatedAt REMOVE #fileKey, #fileName, #fileType, #fileUrl",
		aws.ToString(withoutFile.UpdateExpression))
	_, hasFileValue := withoutFile.ExpressionAttributeValues[":fileKey"]
	assert.False(t, hasFileValue)
}

func TestRepository_DeleteIsIdempotent(t *testing.T) {
	client := newFakeClient()
	repo := New(client, "")
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, sampleNote("u", "n", time.Now())))

	require.NoError(t, repo.Delete(ctx, "u", "n"))
	require.NoError(t, repo.Delete(ctx, "u", "n"))
	_, err := repo.Get(ctx, "u", "n")
	assert.ErrorIs(t, err, simplenotes.ErrNoteNotFound)
}

func TestRepository_ErrorMapping(t *testing.T) {
	client := newFakeClient()
	repo := New(client, "NotesTable")

	client.failWith = &types.ResourceNotFoundException{Message: aws.String("Requested resource not found")}
	err := repo.Put(context.Background(), sampleNote("u", "n", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table NotesTable does not exist")

	client.failWith = &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	_, err = repo.Get(context.Background(), "u", "n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dynamodb error in get note")
	assert.NotErrorIs(t, err, simplenotes.ErrNoteNotFound)
}

func TestRecord_InvalidTimestamp(t *testing.T) {
	_, err := noteRecord{NoteID: "n", CreatedAt: "yesterday"}.toNote()
	assert.Error(t, err)

	note, err := noteRecord{NoteID: "n", CreatedAt: "2024-01-01T00:00:00Z"}.toNote()
	require.NoError(t, err)
	assert.Equal(t, note.CreatedAt, note.UpdatedAt)
}
