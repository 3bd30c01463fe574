package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/Tomlord1122/todo-store/internal/config"
)

// Key attribute names of the todos table. Every todo lives under one
// partition; the sort key is the time-ordered todo id.
const (
	DynamoAttrPK = "pk"
	DynamoAttrSK = "sk"
)

// DynamoTableAPI is the slice of the DynamoDB API used for table management.
type DynamoTableAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ DynamoTableAPI = (*dynamodb.Client)(nil)

// DynamoDB holds the client for the DynamoDB substrate.
type DynamoDB struct {
	client *dynamodb.Client
	tables DynamoTableAPI
	table  string

	// Polling bounds used while a new table becomes ACTIVE.
	waitMinDelay time.Duration
	waitMaxDelay time.Duration
	waitTimeout  time.Duration
}

const (
	tableWaitMinDelay = time.Second
	tableWaitMaxDelay = 10 * time.Second
	tableWaitTimeout  = 2 * time.Minute
)

// NewDynamoDB loads AWS credentials from the default chain. A non-empty
// cfg.Endpoint points the client at DynamoDB Local or another emulator.
func NewDynamoDB(ctx context.Context, cfg config.DynamoConfig) (*DynamoDB, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &DynamoDB{
		client:       client,
		tables:       client,
		table:        cfg.Table,
		waitMinDelay: tableWaitMinDelay,
		waitMaxDelay: tableWaitMaxDelay,
		waitTimeout:  tableWaitTimeout,
	}, nil
}

// NewDynamoDBWithClient is used by tests to inject a table API.
func NewDynamoDBWithClient(tables DynamoTableAPI, table string) *DynamoDB {
	return &DynamoDB{
		tables:       tables,
		table:        table,
		waitMinDelay: tableWaitMinDelay,
		waitMaxDelay: tableWaitMaxDelay,
		waitTimeout:  tableWaitTimeout,
	}
}

func (d *DynamoDB) Client() *dynamodb.Client {
	return d.client
}

func (d *DynamoDB) Table() string {
	return d.table
}

// EnsureTable creates the todos table when it does not exist yet and blocks
// until it is ACTIVE.
func (d *DynamoDB) EnsureTable(ctx context.Context) error {
	_, err := d.tables.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table %s: %w", d.table, err)
	}

	log.Info().Str("table", d.table).Msg("Creating DynamoDB table")
	_, err = d.tables.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(DynamoAttrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(DynamoAttrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(DynamoAttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(DynamoAttrSK), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.table, err)
	}

	// Wait for table to be active
	waiter := dynamodb.NewTableExistsWaiter(d.tables, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = d.waitMinDelay
		o.MaxDelay = d.waitMaxDelay
	})
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)}, d.waitTimeout); err != nil {
		return fmt.Errorf("table %s did not become active: %w", d.table, err)
	}
	log.Info().Str("table", d.table).Msg("DynamoDB table active")
	return nil
}

func (d *DynamoDB) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats := map[string]string{
		"backend": config.BackendDynamoDB,
		"table":   d.table,
	}

	out, err := d.tables.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.table)})
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Str("table", d.table).Msg("dynamodb table unavailable")
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"
	if out.Table != nil {
		stats["table_status"] = string(out.Table.TableStatus)
		if out.Table.ItemCount != nil {
			stats["item_count"] = fmt.Sprintf("%d", *out.Table.ItemCount)
		}
	}
	return stats
}

// Close is a no-op for the SDK client.
func (d *DynamoDB) Close() error {
	return nil
}
