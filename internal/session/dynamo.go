package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"tunedrive/internal/model"
)

// DefaultTTL bounds how long a crashed download can block retries for the
// same video.
const DefaultTTL = 15 * time.Minute

// DynamoGuard stores download claims in DynamoDB using a conditional put,
// with the table's TTL attribute cleaning up stale rows.
type DynamoGuard struct {
	client      *dynamodb.Client
	tableName   string
	ttlDuration time.Duration
}

// NewDynamoGuard creates a guard backed by the given table.
func NewDynamoGuard(client *dynamodb.Client, tableName string) *DynamoGuard {
	return &DynamoGuard{
		client:      client,
		tableName:   tableName,
		ttlDuration: DefaultTTL,
	}
}

// Claim succeeds if no claim exists for the video, the existing claim has
// expired, or the existing claim belongs to the same session.
func (g *DynamoGuard) Claim(ctx context.Context, videoKey, sessionID string) (*model.DownloadClaim, error) {
	now := time.Now().Unix()
	claim := model.DownloadClaim{
		VideoKey:  videoKey,
		SessionID: sessionID,
		ExpiresAt: now + int64(g.ttlDuration.Seconds()),
	}

	item, err := attributevalue.MarshalMap(claim)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal claim: %w", err)
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.tableName),
		Item:      item,
		ConditionExpression: aws.String(
			"attribute_not_exists(video_key) OR expires_at < :now OR session_id = :session_id",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
			":session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim download: %w", err)
	}

	return &claim, nil
}

// Release removes the claim if the session owns it.
func (g *DynamoGuard) Release(ctx context.Context, videoKey, sessionID string) error {
	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.tableName),
		Key: map[string]types.AttributeValue{
			"video_key": &types.AttributeValueMemberS{Value: videoKey},
		},
		ConditionExpression: aws.String("session_id = :session_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

// Status returns the live claim on a video, or nil if there is none.
func (g *DynamoGuard) Status(ctx context.Context, videoKey string) (*model.DownloadClaim, error) {
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(g.tableName),
		Key: map[string]types.AttributeValue{
			"video_key": &types.AttributeValueMemberS{Value: videoKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var claim model.DownloadClaim
	if err := attributevalue.UnmarshalMap(out.Item, &claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim: %w", err)
	}

	if claim.ExpiresAt < time.Now().Unix() {
		return nil, nil // Expired
	}
	return &claim, nil
}
