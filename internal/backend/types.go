package backend

import "github.com/google/uuid"

// AuthSession mirrors the token response from /auth/v1/token.
type AuthSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Valid reports whether the session carries an access token.
func (s AuthSession) Valid() bool {
	return s.AccessToken != ""
}

type userResponse struct {
	User struct {
		ID uuid.UUID `json:"id"`
	} `json:"user"`
	// Newer auth servers return the user object at the top level.
	ID uuid.UUID `json:"id"`
}

func (u userResponse) userID() uuid.UUID {
	if u.User.ID != uuid.Nil {
		return u.User.ID
	}
	return u.ID
}

type signedURLResponse struct {
	SignedURL string `json:"signedURL"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateRequest struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}

// updatedRow is the part of the PATCH representation used to detect a write
// that matched nothing.
type updatedRow struct {
	ID uuid.UUID `json:"id"`
}

type attachmentRow struct {
	WorkOrderID uuid.UUID `json:"work_order_id"`
	StoragePath string    `json:"storage_path"`
	CreatedBy   uuid.UUID `json:"created_by"`
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}
