package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"weHabitAPI/internal/config"
)

// NewFirebaseApp initializes the Firebase app shared by Firestore and FCM.
// Credentials come from FCM_SERVICE_ACCOUNT_JSON (Base64 encoded) first,
// then the credentials file. With neither set the app falls back to
// application default credentials, which is what the emulators expect.
func NewFirebaseApp(ctx context.Context, cfg config.FirebaseConfig, log *zap.Logger) (*firebase.App, error) {
	var opts []option.ClientOption

	switch {
	case cfg.ServiceAccountJSON != "":
		decoded, err := base64.StdEncoding.DecodeString(cfg.ServiceAccountJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials from FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
		log.Info("firebase: initializing from FCM_SERVICE_ACCOUNT_JSON")
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		log.Info("firebase: initializing from credentials file", zap.String("path", cfg.CredentialsFile))
	default:
		log.Info("firebase: initializing from application default credentials")
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}

type FCMService struct {
	client *messaging.Client
	log    *zap.Logger
}

func NewFCMService(ctx context.Context, app *firebase.App, log *zap.Logger) (*FCMService, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FCMService{client: client, log: log}, nil
}

// SendPush delivers msg to each token individually. It fails only when
// every delivery failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []string, msg Message) error {
	if len(tokens) == 0 {
		return nil
	}

	successCount := 0
	failureCount := 0

	for _, token := range tokens {
		message := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
			},
		}

		if _, err := s.client.Send(ctx, message); err != nil {
			s.log.Warn("fcm: send failed", zap.Error(err))
			failureCount++
		} else {
			successCount++
		}
	}

	s.log.Debug("fcm: batch sent", zap.Int("sent", successCount), zap.Int("failed", failureCount))

	if successCount == 0 && failureCount > 0 {
		return fmt.Errorf("all %d push notifications failed", failureCount)
	}
	return nil
}
