// Package auth manages the archive account's Google OAuth2 credentials: the
// one-time authorization flow and refresh-token storage.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/oauth2"

	"tunedrive/internal/crypto"
	"tunedrive/internal/model"
)

// archiveAccountID keys the single archive account's token row.
const archiveAccountID = "archive"

// Service handles the OAuth2 flow and token persistence for the archive
// account. Tokens live in DynamoDB encrypted with KMS; without a DynamoDB
// client they are held in memory, and a statically configured refresh token
// (resolved from SSM or env) works without any authorization flow at all.
type Service struct {
	oauthConfig  *oauth2.Config
	dynamoClient *dynamodb.Client
	tableName    string
	kmsService   crypto.Encryptor

	// staticRefreshToken is used when no stored token exists.
	staticRefreshToken string

	// In-memory fallback
	tokens map[string]model.AccountToken
	mu     sync.RWMutex
}

// NewService creates a new Service. dynamoClient may be nil.
func NewService(oauthConfig *oauth2.Config, dynamoClient *dynamodb.Client, tableName string, kmsService crypto.Encryptor, staticRefreshToken string) *Service {
	return &Service{
		oauthConfig:        oauthConfig,
		dynamoClient:       dynamoClient,
		tableName:          tableName,
		kmsService:         kmsService,
		staticRefreshToken: staticRefreshToken,
		tokens:             make(map[string]model.AccountToken),
	}
}

// Config returns the OAuth2 config.
func (s *Service) Config() *oauth2.Config {
	return s.oauthConfig
}

// GenerateAuthURL returns the URL to redirect to for Google authorization.
func (s *Service) GenerateAuthURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges the authorization code for a token.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.oauthConfig.Exchange(ctx, code)
}

// SaveToken encrypts the refresh token and stores it for the archive account.
func (s *Service) SaveToken(ctx context.Context, token *oauth2.Token) error {
	if token.RefreshToken == "" {
		return fmt.Errorf("no refresh token in response")
	}

	encrypted, err := s.kmsService.Encrypt(ctx, token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	accountToken := model.AccountToken{
		AccountID:             archiveAccountID,
		EncryptedRefreshToken: encrypted,
		UpdatedAt:             time.Now(),
	}

	if s.dynamoClient == nil {
		s.mu.Lock()
		s.tokens[archiveAccountID] = accountToken
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(accountToken)
	if err != nil {
		return fmt.Errorf("failed to marshal account token: %w", err)
	}

	_, err = s.dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save token to DynamoDB: %w", err)
	}

	return nil
}

// refreshToken returns the plaintext refresh token for the archive account,
// preferring a stored (authorized) token over the statically configured one.
func (s *Service) refreshToken(ctx context.Context) (string, error) {
	var accountToken model.AccountToken
	found := false

	if s.dynamoClient == nil {
		s.mu.RLock()
		t, ok := s.tokens[archiveAccountID]
		s.mu.RUnlock()
		if ok {
			accountToken = t
			found = true
		}
	} else {
		out, err := s.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"account_id": &types.AttributeValueMemberS{Value: archiveAccountID},
			},
		})
		if err != nil {
			return "", fmt.Errorf("failed to get item from DynamoDB: %w", err)
		}
		if out.Item != nil {
			if err := attributevalue.UnmarshalMap(out.Item, &accountToken); err != nil {
				return "", fmt.Errorf("failed to unmarshal account token: %w", err)
			}
			found = true
		}
	}

	if found {
		plaintext, err := s.kmsService.Decrypt(ctx, accountToken.EncryptedRefreshToken)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		return plaintext, nil
	}

	if s.staticRefreshToken != "" {
		return s.staticRefreshToken, nil
	}

	return "", fmt.Errorf("archive account is not authorized: no refresh token available")
}

// Client returns an authenticated http.Client for the archive account.
func (s *Service) Client(ctx context.Context) (*http.Client, error) {
	refresh, err := s.refreshToken(ctx)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		RefreshToken: refresh,
		Expiry:       time.Now().Add(-1 * time.Hour), // Force refresh
	}

	tokenSource := s.oauthConfig.TokenSource(ctx, token)

	return oauth2.NewClient(ctx, tokenSource), nil
}
