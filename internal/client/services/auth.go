// Package services contains application services of the sentinel client.
// This file defines the authentication service: registration material
// generation, login with private key unlock, and logout housekeeping.
package services

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/sentinel-chat/sentinel/internal/client/client"
	"github.com/sentinel-chat/sentinel/internal/client/models"
	"github.com/sentinel-chat/sentinel/internal/client/repositories/keys"
	"github.com/sentinel-chat/sentinel/internal/client/repositories/messages"
	"github.com/sentinel-chat/sentinel/internal/cryptox"
	"github.com/sentinel-chat/sentinel/internal/dbx"
	"github.com/sentinel-chat/sentinel/internal/shared"
)

// authAPI is the REST surface the auth service consumes.
type authAPI interface {
	Register(ctx context.Context, req *client.RegisterRequest) (*models.Identity, error)
	Login(ctx context.Context, username, password string) (*models.Identity, error)
	Token() string
}

// Unlocked couples an authenticated identity with its usable private key.
// It exists only in memory for the lifetime of a session.
type Unlocked struct {
	Identity   models.Identity
	PrivateKey *rsa.PrivateKey
}

// AuthService defines the account operations of the CLI.
//
// Contract:
//   - Register: generate identity keys, wrap the private key under the
//     password, create the account, persist the wrapped key locally.
//   - Login: authenticate, unlock the private key from server data or the
//     local key cache, persist the wrapped key locally.
//   - Logout: wipe locally cached keys and messages.
//
// The raw password is consumed by key derivation and wiped before any
// method returns; it is never retained for later unlocks.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) (*Unlocked, error)
	Login(ctx context.Context, username string, password []byte) (*Unlocked, error)
	Logout(ctx context.Context) error
}

// authService is the concrete AuthService backed by the REST client and
// the local cache DB.
type authService struct {
	api authAPI
	db  *sql.DB
}

// NewAuthService constructs an AuthService bound to the given API client and DB.
func NewAuthService(api authAPI, db *sql.DB) AuthService {
	return &authService{api: api, db: db}
}

func (a *authService) getKeysRepo() keys.Repository {
	return keys.NewSQLiteRepository(a.db)
}

// Register generates a fresh identity key pair, wraps the private key under
// the password, and creates the account. On success the wrapped key is
// cached locally so a later login can unlock offline, and the unlocked
// session material is returned.
func (a *authService) Register(ctx context.Context, username string, password []byte) (*Unlocked, error) {
	defer shared.WipeByteArray(password)

	priv, err := cryptox.GenerateIdentityKeys()
	if err != nil {
		return nil, err
	}

	encrypted, salt, err := cryptox.ProtectPrivateKey(priv, password)
	if err != nil {
		return nil, fmt.Errorf("failed to protect private key: %w", err)
	}

	publicKey, err := cryptox.ExportPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	identity, err := a.api.Register(ctx, &client.RegisterRequest{
		Username:      username,
		Password:      string(password),
		PublicKey:     publicKey,
		EncPrivateKey: encrypted,
		Salt:          base64.StdEncoding.EncodeToString(salt),
	})
	if err != nil {
		return nil, err
	}
	if identity.PublicKey == "" {
		identity.PublicKey = publicKey
	}

	if err := a.getKeysRepo().Save(ctx, &models.KeyRecord{
		Username:      identity.Username,
		EncPrivateKey: encrypted,
		Salt:          salt,
	}); err != nil {
		return nil, fmt.Errorf("failed to cache key record: %w", err)
	}

	return &Unlocked{Identity: *identity, PrivateKey: priv}, nil
}

// Login authenticates against the server and unlocks the private key. The
// wrapped key comes from the login response when the server carries it, or
// from the local key cache otherwise. A wrong password surfaces as
// cryptox.ErrInvalidCredentials.
func (a *authService) Login(ctx context.Context, username string, password []byte) (*Unlocked, error) {
	defer shared.WipeByteArray(password)

	identity, err := a.api.Login(ctx, username, string(password))
	if err != nil {
		return nil, err
	}

	encrypted := identity.EncPrivateKey
	var salt []byte
	if identity.Salt != "" {
		salt, err = base64.StdEncoding.DecodeString(identity.Salt)
		if err != nil {
			return nil, cryptox.ErrInvalidCredentials
		}
	}

	if encrypted == "" {
		rec, err := a.getKeysRepo().Get(ctx, identity.Username)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, cryptox.ErrInvalidCredentials
			}
			return nil, err
		}
		encrypted, salt = rec.EncPrivateKey, rec.Salt
	}

	priv, err := cryptox.UnlockPrivateKey(encrypted, password, salt)
	if err != nil {
		return nil, err
	}

	if err := a.getKeysRepo().Save(ctx, &models.KeyRecord{
		Username:      identity.Username,
		EncPrivateKey: encrypted,
		Salt:          salt,
	}); err != nil {
		return nil, fmt.Errorf("failed to cache key record: %w", err)
	}

	return &Unlocked{Identity: *identity, PrivateKey: priv}, nil
}

// Logout wipes the locally cached keys and messages in one transaction.
func (a *authService) Logout(ctx context.Context) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := keys.NewSQLiteRepository(tx).Clear(ctx); err != nil {
			return err
		}
		return messages.NewSQLiteRepository(tx).Clear(ctx)
	})
}
