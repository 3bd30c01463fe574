package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Tomlord1122/todo-store/internal/database"
	"github.com/Tomlord1122/todo-store/internal/domain"
)

// todoPartition is the partition key shared by every todo. The sort key is
// the todo id, which is time ordered, so a reverse query lists newest first.
const todoPartition = "TODO"

// toggleAttempts bounds the read/conditional-write loop used by ToggleCompleted.
const toggleAttempts = 3

type dynamoTodoRepository struct {
	client    DynamoDBClient
	tableName string
}

func NewDynamoDBTodoRepository(client DynamoDBClient, tableName string) TodoRepository {
	return &dynamoTodoRepository{
		client:    client,
		tableName: tableName,
	}
}

func todoKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		database.DynamoAttrPK: &types.AttributeValueMemberS{Value: todoPartition},
		database.DynamoAttrSK: &types.AttributeValueMemberS{Value: id},
	}
}

func (r *dynamoTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	item, err := attributevalue.MarshalMap(todo)
	if err != nil {
		return fmt.Errorf("failed to marshal todo: %w", err)
	}
	for k, v := range todoKey(todo.ID) {
		item[k] = v
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{
			"#sk": database.DynamoAttrSK,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	return nil
}

func (r *dynamoTodoRepository) FindByID(ctx context.Context, id string) (*domain.Todo, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            todoKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	if len(result.Item) == 0 {
		return nil, fmt.Errorf("todo %s: %w", id, domain.ErrTodoNotFound)
	}

	var todo domain.Todo
	if err := attributevalue.UnmarshalMap(result.Item, &todo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal todo: %w", err)
	}
	return &todo, nil
}

func (r *dynamoTodoRepository) List(ctx context.Context) ([]domain.Todo, error) {
	todos := []domain.Todo{}
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("#pk = :pk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": database.DynamoAttrPK,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: todoPartition},
			},
			ScanIndexForward:  aws.Bool(false),
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query todos: %w", err)
		}

		page := []domain.Todo{}
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal todos: %w", err)
		}
		todos = append(todos, page...)

		if len(out.LastEvaluatedKey) == 0 {
			return todos, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// ToggleCompleted reads the current flag and writes its negation on the
// condition that nobody changed it in between.
func (r *dynamoTodoRepository) ToggleCompleted(ctx context.Context, id string) (*domain.Todo, error) {
	for attempt := 1; attempt <= toggleAttempts; attempt++ {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.tableName),
			Key:                 todoKey(id),
			UpdateExpression:    aws.String("SET #done = :next"),
			ConditionExpression: aws.String("attribute_exists(#sk) AND #done = :prev"),
			ExpressionAttributeNames: map[string]string{
				"#done": "is_completed",
				"#sk":   database.DynamoAttrSK,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":next": &types.AttributeValueMemberBOOL{Value: !current.IsCompleted},
				":prev": &types.AttributeValueMemberBOOL{Value: current.IsCompleted},
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(err, &condErr) {
				continue
			}
			return nil, fmt.Errorf("failed to toggle todo: %w", err)
		}

		var todo domain.Todo
		if err := attributevalue.UnmarshalMap(out.Attributes, &todo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal todo: %w", err)
		}
		return &todo, nil
	}
	return nil, fmt.Errorf("toggle todo %s: concurrent updates, gave up after %d attempts", id, toggleAttempts)
}

func (r *dynamoTodoRepository) UpdateText(ctx context.Context, id, text string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 todoKey(id),
		UpdateExpression:    aws.String("SET #text = :text"),
		ConditionExpression: aws.String("attribute_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{
			"#text": "text",
			"#sk":   database.DynamoAttrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":text": &types.AttributeValueMemberS{Value: text},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("update todo %s: %w", id, domain.ErrRecordMissing)
		}
		return fmt.Errorf("failed to update todo: %w", err)
	}
	return nil
}

func (r *dynamoTodoRepository) Delete(ctx context.Context, id string) (bool, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          todoKey(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	return len(out.Attributes) > 0, nil
}
