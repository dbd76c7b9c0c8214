package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/thrifthaven-api/internal/domain"
)

// ItemRepo provides typed DynamoDB operations for the items table.
//
// Lifecycle transitions pair the item write with its notification insert(s)
// in a single TransactWriteItems call, so readers never observe a transition
// without its notification (or the other way round). Guards are re-checked
// inside the transaction with condition expressions; a failed condition maps
// to domain.ErrConflict, which is how two racing approvals resolve to
// exactly one winner.
type ItemRepo struct {
	client             *dynamodb.Client
	tableName          string
	notificationsTable string
}

func NewItemRepo(client *dynamodb.Client, tableName, notificationsTable string) *ItemRepo {
	return &ItemRepo{client: client, tableName: tableName, notificationsTable: notificationsTable}
}

// CreateWithNotifications inserts the item and the admin fan-out
// notifications atomically.
func (r *ItemRepo) CreateWithNotifications(ctx context.Context, it *domain.Item, ns []domain.Notification) error {
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	writes := []types.TransactWriteItem{{
		Put: &types.Put{TableName: aws.String(r.tableName), Item: item},
	}}
	for i := range ns {
		put, err := r.notificationPut(&ns[i])
		if err != nil {
			return err
		}
		writes = append(writes, types.TransactWriteItem{Put: put})
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	return mapTransactionError(err)
}

func (r *ItemRepo) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("item_id", itemID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("item not found: %w", domain.ErrNotFound)
	}
	var it domain.Item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// Scan returns all items, optionally filtered to approved listings only.
func (r *ItemRepo) Scan(ctx context.Context, approvedOnly bool) ([]domain.Item, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(r.tableName)}
	if approvedOnly {
		input.FilterExpression = aws.String("approved = :t")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
		}
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, err
	}
	var items []domain.Item
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ScanPending returns items still awaiting an admin offer: not approved and
// no offer_price attribute yet.
func (r *ItemRepo) ScanPending(ctx context.Context) ([]domain.Item, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("approved = :f AND attribute_not_exists(offer_price)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return nil, err
	}
	var items []domain.Item
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListByUser queries the user_id-created_at GSI, newest first.
func (r *ItemRepo) ListByUser(ctx context.Context, userID string) ([]domain.Item, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-created_at-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	var items []domain.Item
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Update applies an allow-listed partial update guarded by the pre-offer
// condition: edits are only legal while no offer_price exists.
func (r *ItemRepo) Update(ctx context.Context, itemID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("item_id", itemID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(item_id) AND attribute_not_exists(offer_price)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return mapConditionalError(err)
}

// SetOffer stores the computed offer price and the OFFER notification in one
// transaction. The condition re-checks that no offer exists yet, so at most
// one of two concurrent approvals succeeds.
func (r *ItemRepo) SetOffer(ctx context.Context, itemID, offerPrice string, n *domain.Notification) error {
	put, err := r.notificationPut(n)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:           aws.String(r.tableName),
					Key:                 strKey("item_id", itemID),
					UpdateExpression:    aws.String("SET offer_price = :p, updated_at = :now"),
					ConditionExpression: aws.String("attribute_exists(item_id) AND attribute_not_exists(offer_price)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":p":   &types.AttributeValueMemberS{Value: offerPrice},
						":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
					},
				},
			},
			{Put: put},
		},
	})
	return mapTransactionError(err)
}

// Approve flips approved=true and writes the APPROVED notification
// atomically. Requires an existing offer.
func (r *ItemRepo) Approve(ctx context.Context, itemID string, n *domain.Notification) error {
	put, err := r.notificationPut(n)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:           aws.String(r.tableName),
					Key:                 strKey("item_id", itemID),
					UpdateExpression:    aws.String("SET approved = :t, updated_at = :now"),
					ConditionExpression: aws.String("attribute_exists(offer_price)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":t":   &types.AttributeValueMemberBOOL{Value: true},
						":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
					},
				},
			},
			{Put: put},
		},
	})
	return mapTransactionError(err)
}

// MarkSold sets the sold flag and writes the SOLD notification atomically.
// Only legal once the listing is approved.
func (r *ItemRepo) MarkSold(ctx context.Context, itemID string, n *domain.Notification) error {
	put, err := r.notificationPut(n)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:           aws.String(r.tableName),
					Key:                 strKey("item_id", itemID),
					UpdateExpression:    aws.String("SET sold = :t, updated_at = :now"),
					ConditionExpression: aws.String("approved = :t"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":t":   &types.AttributeValueMemberBOOL{Value: true},
						":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
					},
				},
			},
			{Put: put},
		},
	})
	return mapTransactionError(err)
}

// DeleteDeclined removes the item row and writes the DECLINED notification
// atomically. Both decline paths happen before approval, so the condition
// keeps live listings from being deleted.
func (r *ItemRepo) DeleteDeclined(ctx context.Context, itemID string, n *domain.Notification) error {
	put, err := r.notificationPut(n)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName:           aws.String(r.tableName),
					Key:                 strKey("item_id", itemID),
					ConditionExpression: aws.String("attribute_exists(item_id) AND approved = :f"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":f": &types.AttributeValueMemberBOOL{Value: false},
					},
				},
			},
			{Put: put},
		},
	})
	return mapTransactionError(err)
}

func (r *ItemRepo) notificationPut(n *domain.Notification) (*types.Put, error) {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return &types.Put{TableName: aws.String(r.notificationsTable), Item: item}, nil
}

// mapTransactionError translates a cancelled transaction whose cause was a
// failed condition into domain.ErrConflict; everything else is surfaced
// unchanged as a single transition failure.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return fmt.Errorf("transition guard failed: %w", domain.ErrConflict)
			}
		}
	}
	return err
}

func mapConditionalError(err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("item is no longer editable: %w", domain.ErrConflict)
	}
	return err
}
