package model

import "time"

// AccountToken is the archive account's OAuth2 token as stored in DynamoDB.
// The app serves a single Drive account, but the table is keyed by account ID
// so a second archive could share it.
type AccountToken struct {
	AccountID             string    `json:"account_id" dynamodbav:"account_id"`
	EncryptedRefreshToken string    `json:"encrypted_refresh_token" dynamodbav:"encrypted_refresh_token"`
	RootFolderID          string    `json:"root_folder_id" dynamodbav:"root_folder_id"` // Archive root on Drive
	UpdatedAt             time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// DownloadClaim marks an in-flight download of a video so that a second
// request for the same URL is rejected instead of fetched twice.
type DownloadClaim struct {
	VideoKey  string `json:"video_key" dynamodbav:"video_key"`
	SessionID string `json:"session_id" dynamodbav:"session_id"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix timestamp)
}
