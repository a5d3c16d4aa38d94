package firestore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/lumoapp/billing-service/pkg/logger"
)

// NewClient инициализирует клиент Firestore. Сначала пытается использовать
// учетные данные из переменной окружения FIREBASE_SERVICE_ACCOUNT_JSON
// (в кодировке Base64), затем переходит на локальный файл ключа.
func NewClient(ctx context.Context, projectID, credentialsFile string, log *logger.Logger) (*firestore.Client, error) {
	var opts []option.ClientOption

	encodedCreds := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials from FIREBASE_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
		log.Infow("Firestore: initializing from FIREBASE_SERVICE_ACCOUNT_JSON environment variable")
	} else if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s, and FIREBASE_SERVICE_ACCOUNT_JSON environment variable is not set", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		log.Infow("Firestore: initializing from credentials file", "path", credentialsFile)
	}

	conf := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	return client, nil
}
