package middleware

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/stackit/backend/internal/models"
)

// FirebaseUserLookup maps a Firebase UID to the local user record
type FirebaseUserLookup interface {
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
}

// FirebaseVerifier validates Firebase ID tokens and resolves them to local users
type FirebaseVerifier struct {
	client *auth.Client
	users  FirebaseUserLookup
}

func NewFirebaseVerifier(client *auth.Client, users FirebaseUserLookup) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, users: users}
}

func (v *FirebaseVerifier) VerifyToken(ctx context.Context, idToken string) (uint, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return 0, fmt.Errorf("verify firebase ID token: %w", err)
	}
	user, err := v.users.GetUserByFirebaseUID(ctx, token.UID)
	if err != nil {
		return 0, fmt.Errorf("no user for firebase uid %s: %w", token.UID, err)
	}
	return user.ID, nil
}
