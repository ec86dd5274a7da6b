package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cbodonnell/noughts/pkg/log"
)

var _ AuthHandler = &FirebaseAuthHandler{}

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// FirebaseAuthHandler implements AuthHandler using Firebase Auth REST API
type FirebaseAuthHandler struct {
	apiKey             string
	identityToolkitURL string
	secureTokenURL     string
	client             *http.Client
}

type NewFirebaseAuthHandlerOptions struct {
	APIKey string
	// IdentityToolkitURL and SecureTokenURL default to the Google endpoints
	IdentityToolkitURL string
	SecureTokenURL     string
	Client             *http.Client
}

// NewFirebaseAuthHandler creates a new instance of FirebaseAuthHandler
func NewFirebaseAuthHandler(opts NewFirebaseAuthHandlerOptions) *FirebaseAuthHandler {
	h := &FirebaseAuthHandler{
		apiKey:             opts.APIKey,
		identityToolkitURL: opts.IdentityToolkitURL,
		secureTokenURL:     opts.SecureTokenURL,
		client:             opts.Client,
	}
	if h.identityToolkitURL == "" {
		h.identityToolkitURL = DefaultIdentityToolkitURL
	}
	if h.secureTokenURL == "" {
		h.secureTokenURL = DefaultSecureTokenURL
	}
	if h.client == nil {
		h.client = http.DefaultClient
	}
	return h
}

// ErrorResponseBody is the response body for an error
// https://firebase.google.com/docs/reference/rest/auth#section-error-format
type ErrorResponseBody struct {
	Error struct {
		Code    int                  `json:"code"`
		Message ErrorResponseMessage `json:"message"`
	} `json:"error"`
}

type ErrorResponseMessage string

const (
	ErrorOperationNotAllowed     ErrorResponseMessage = "OPERATION_NOT_ALLOWED"
	ErrorTooManyAttempts         ErrorResponseMessage = "TOO_MANY_ATTEMPTS_TRY_LATER"
	ErrorInvalidEmail            ErrorResponseMessage = "INVALID_EMAIL"
	ErrorInvalidLoginCredentials ErrorResponseMessage = "INVALID_LOGIN_CREDENTIALS"
	ErrorTokenExpired            ErrorResponseMessage = "TOKEN_EXPIRED"
	ErrorInvalidRefreshToken     ErrorResponseMessage = "INVALID_REFRESH_TOKEN"
)

// errorMessages maps Firebase errors to the message and status returned to
// the caller. Anything else is an internal error.
var errorMessages = map[ErrorResponseMessage]struct {
	text   string
	status int
}{
	ErrorOperationNotAllowed:     {"Sign-in method not allowed", http.StatusBadRequest},
	ErrorTooManyAttempts:         {"Too many attempts, try again later", http.StatusTooManyRequests},
	ErrorInvalidEmail:            {"Invalid email", http.StatusBadRequest},
	ErrorInvalidLoginCredentials: {"Invalid credentials", http.StatusUnauthorized},
	ErrorTokenExpired:            {"Token expired", http.StatusUnauthorized},
	ErrorInvalidRefreshToken:     {"Invalid refresh token", http.StatusUnauthorized},
}

// firebaseError is a non-200 answer of the REST API
type firebaseError struct {
	status  int
	message ErrorResponseMessage
}

func (e *firebaseError) Error() string {
	return fmt.Sprintf("firebase responded %d: %s", e.status, e.message)
}

// signInRequestBody covers both email sign-in and anonymous sign-up
type signInRequestBody struct {
	Email             string `json:"email,omitempty"`
	Password          string `json:"password,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type updateProfileRequestBody struct {
	IDToken           string `json:"idToken"`
	DisplayName       string `json:"displayName"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// signInResponseBody is shared by signUp, signInWithPassword and update
type signInResponseBody struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

type refreshRequestBody struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponseBody struct {
	ExpiresIn    string `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
}

func (h *FirebaseAuthHandler) post(ctx context.Context, url string, payload any, out any) error {
	body := bytes.NewBuffer(nil)
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return fmt.Errorf("error encoding request body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+h.apiKey, body)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorResponse := &ErrorResponseBody{}
		if err := json.NewDecoder(resp.Body).Decode(errorResponse); err != nil {
			return fmt.Errorf("failed to decode error response with status %s: %v", resp.Status, err)
		}
		return &firebaseError{status: resp.StatusCode, message: errorResponse.Error.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %v", err)
	}
	return nil
}

func writeFirebaseError(w http.ResponseWriter, err error, fallback string) {
	if fbErr, ok := err.(*firebaseError); ok {
		if m, ok := errorMessages[fbErr.message]; ok {
			http.Error(w, m.text, m.status)
			return
		}
	}
	log.Error("%s: %v", fallback, err)
	http.Error(w, fallback, http.StatusInternalServerError)
}

// HandleLogin signs in with email and password when both are given, and
// anonymously otherwise.
// https://firebase.google.com/docs/reference/rest/auth#section-sign-in-email-password
// https://firebase.google.com/docs/reference/rest/auth#section-sign-in-anonymously
func (h *FirebaseAuthHandler) HandleLogin() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		email := r.FormValue("email")
		password := r.FormValue("password")
		name := r.FormValue("name")
		if (email == "") != (password == "") {
			http.Error(w, "Email and password must be given together", http.StatusBadRequest)
			return
		}
		if len(name) > maxNameLength {
			http.Error(w, "Name is too long", http.StatusBadRequest)
			return
		}

		endpoint := h.identityToolkitURL + "/accounts:signUp"
		if email != "" {
			endpoint = h.identityToolkitURL + "/accounts:signInWithPassword"
		}
		signIn := &signInResponseBody{}
		err := h.post(r.Context(), endpoint, &signInRequestBody{
			Email:             email,
			Password:          password,
			ReturnSecureToken: true,
		}, signIn)
		if err != nil {
			writeFirebaseError(w, err, "Failed to login")
			return
		}

		// the update returns tokens carrying the new name claim
		if email == "" && name != "" {
			updated := &signInResponseBody{}
			err := h.post(r.Context(), h.identityToolkitURL+"/accounts:update", &updateProfileRequestBody{
				IDToken:           signIn.IDToken,
				DisplayName:       name,
				ReturnSecureToken: true,
			}, updated)
			if err != nil {
				writeFirebaseError(w, err, "Failed to set display name")
				return
			}
			updated.LocalID = signIn.LocalID
			signIn = updated
		}

		writeTokenResponse(w, &TokenResponseBody{
			IDToken:      signIn.IDToken,
			RefreshToken: signIn.RefreshToken,
			ExpiresIn:    signIn.ExpiresIn,
			LocalID:      signIn.LocalID,
		})
	}
}

// HandleRefresh handles requests to the refresh endpoint
// https://firebase.google.com/docs/reference/rest/auth#section-refresh-token
func (h *FirebaseAuthHandler) HandleRefresh() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		refreshToken := r.FormValue("refreshToken")
		if refreshToken == "" {
			http.Error(w, "Missing refresh token", http.StatusBadRequest)
			return
		}

		refreshed := &refreshResponseBody{}
		err := h.post(r.Context(), h.secureTokenURL+"/token", &refreshRequestBody{
			GrantType:    "refresh_token",
			RefreshToken: refreshToken,
		}, refreshed)
		if err != nil {
			writeFirebaseError(w, err, "Failed to refresh")
			return
		}

		writeTokenResponse(w, &TokenResponseBody{
			IDToken:      refreshed.IDToken,
			RefreshToken: refreshed.RefreshToken,
			ExpiresIn:    refreshed.ExpiresIn,
			LocalID:      refreshed.UserID,
		})
	}
}
