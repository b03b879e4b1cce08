package firebase

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

// RealtimeDB reads and writes whole JSON nodes of a Realtime Database.
type RealtimeDB struct {
	client *db.Client
}

// NewRealtimeDB initialises the Firebase app and its database client.
func NewRealtimeDB(ctx context.Context, cfg config.FirebaseConfig) (*RealtimeDB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("firebase database url is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase database: %w", err)
	}

	return &RealtimeDB{client: client}, nil
}

// Get decodes the node at path into dest. A missing node leaves dest untouched.
func (r *RealtimeDB) Get(ctx context.Context, path string, dest interface{}) error {
	if err := r.client.NewRef(path).Get(ctx, dest); err != nil {
		return fmt.Errorf("firebase get %s: %w", path, err)
	}
	return nil
}

// Set overwrites the node at path with value.
func (r *RealtimeDB) Set(ctx context.Context, path string, value interface{}) error {
	if err := r.client.NewRef(path).Set(ctx, value); err != nil {
		return fmt.Errorf("firebase set %s: %w", path, err)
	}
	return nil
}
