// Package app wires the configuration, AWS clients, storage, index and
// handlers into a runnable application.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"tunedrive/internal/adapter"
	"tunedrive/internal/adapter/googledrive"
	"tunedrive/internal/adapter/memory"
	"tunedrive/internal/auth"
	"tunedrive/internal/config"
	"tunedrive/internal/crypto"
	"tunedrive/internal/fetcher"
	"tunedrive/internal/handler"
	"tunedrive/internal/index"
	"tunedrive/internal/secret"
	"tunedrive/internal/session"
)

// App holds the wired application.
type App struct {
	Handler http.Handler
	Index   *index.PlaylistIndex
}

// New builds the application from the configuration.
//
// In dev mode everything runs in-process: env-var secrets, mock encryption
// and the in-memory store. Setting AWS_ENDPOINT_URL in dev additionally
// points the memory store and download guard at DynamoDB (LocalStack). In
// production the archive lives on Google Drive and secrets come from SSM.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	devMode := cfg.Server.DevMode

	var dynamoClient *dynamodb.Client
	var kmsService crypto.Encryptor
	var resolver secret.Resolver

	if devMode {
		resolver = secret.NewEnvResolver()
		kmsService = crypto.NewMockEncryptor()
		logger.Info("dev mode: env secrets, mock encryption")

		if os.Getenv("AWS_ENDPOINT_URL") != "" {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			dynamoClient = dynamodb.NewFromConfig(awsCfg)
			logger.Info("dev mode: DynamoDB persistence enabled", "endpoint", os.Getenv("AWS_ENDPOINT_URL"))
		}
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
		kmsService = crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.AWS.KMSKeyID)
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
	}

	protectionCode, err := resolver.GetSecret(ctx, cfg.Secrets.ProtectionCodeParam)
	if err != nil {
		return nil, fmt.Errorf("resolve protection code: %w", err)
	}

	jwtSecret, err := resolver.GetSecret(ctx, cfg.Secrets.JWTSecretParam)
	if err != nil {
		if !devMode {
			return nil, fmt.Errorf("resolve jwt secret: %w", err)
		}
		logger.Warn("jwt secret not set, using dev default")
		jwtSecret = "default-dev-secret"
	}

	googleClientSecret, err := resolver.GetSecret(ctx, cfg.Secrets.GoogleClientSecretParam)
	if err != nil {
		logger.Warn("google client secret not resolved, drive auth flow disabled", "err", err)
	}

	// Optional: a pre-provisioned refresh token skips the /auth/login flow.
	staticRefreshToken, err := resolver.GetSecret(ctx, cfg.Secrets.GoogleRefreshTokenParam)
	if err != nil {
		staticRefreshToken = ""
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Drive.ClientID,
		ClientSecret: googleClientSecret,
		RedirectURL:  cfg.Drive.RedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/drive.file"},
		Endpoint:     google.Endpoint,
	}

	authService := auth.NewService(oauthConfig, dynamoClient, cfg.AWS.TokensTable, kmsService, staticRefreshToken)

	var provider adapter.StorageProvider
	if devMode {
		provider = memory.NewProvider(dynamoClient, cfg.AWS.FileStoreTable)
		logger.Info("using in-memory archive store")
	} else {
		provider = googledrive.NewProvider(authService)
		logger.Info("using Google Drive archive store")
	}

	idx := index.New(provider, index.Options{
		RootFolderID:   cfg.Drive.RootFolderID,
		RootFolderName: cfg.Drive.RootFolderName,
		DocumentName:   cfg.Drive.IndexFileName,
		RemoteTimeout:  cfg.Drive.Timeout.Duration,
	}, logger)

	fetch := fetcher.NewYTDLP(cfg.Fetcher.Binary, cfg.Fetcher.CookiesFile, cfg.Fetcher.Timeout.Duration, logger)

	var guard session.Guard
	if dynamoClient != nil && cfg.AWS.DownloadsTable != "" {
		guard = session.NewDynamoGuard(dynamoClient, cfg.AWS.DownloadsTable)
	} else {
		guard = session.NewMemoryGuard()
	}

	srv := handler.NewServer(idx, provider, fetch, guard, authService, handler.Options{
		ProtectionCode: protectionCode,
		JWTSecret:      jwtSecret,
		SessionTTL:     cfg.Server.SessionTTL.Duration,
		WorkDir:        cfg.Fetcher.WorkDir,
		DevMode:        devMode,
	}, logger)

	return &App{
		Handler: srv.Router(),
		Index:   idx,
	}, nil
}
