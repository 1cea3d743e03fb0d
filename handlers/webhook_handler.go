package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"weHabitAPI/internal/types/clerk"
	"weHabitAPI/internal/user"
	"weHabitAPI/services"
)

const (
	maxWebhookBody     = int64(65536)
	webhookMaxClockGap = 5 * time.Minute
)

type WebhookHandler struct {
	userService *services.UserService
	secret      string
	now         func() time.Time
	log         *zap.Logger
}

// NewWebhookHandler builds the Clerk webhook receiver. An empty secret turns
// signature checks off, which is only meant for local development.
func NewWebhookHandler(userService *services.UserService, secret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		userService: userService,
		secret:      secret,
		now:         time.Now,
		log:         log,
	}
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("error reading webhook body", zap.Error(err))
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if err := h.verifySignature(r.Header, body); err != nil {
		h.log.Warn("invalid webhook signature", zap.Error(err))
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event clerk.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.log.Warn("error parsing webhook", zap.Error(err))
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	h.log.Info("received webhook event", zap.String("type", event.Type))

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		h.log.Debug("unhandled webhook event type", zap.String("type", event.Type))
	}
	if err != nil {
		h.log.Error("error handling webhook", zap.String("type", event.Type), zap.Error(err))
		http.Error(w, "Error processing webhook", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	_, err := h.userService.CreateProfile(ctx, &user.CreateProfileRequest{
		UserID:   userData.ID,
		Email:    userData.PrimaryEmail(),
		Username: userData.DisplayName(),
		Avatar:   userData.Avatar(),
	})
	if errors.Is(err, services.ErrProfileExists) {
		return nil
	}
	return err
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	_, err := h.userService.UpdateProfile(ctx, userData.ID, &user.UpdateProfileRequest{
		Username: userData.DisplayName(),
		Avatar:   userData.Avatar(),
	})
	if errors.Is(err, services.ErrProfileNotFound) {
		return h.handleUserCreated(ctx, data)
	}
	return err
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var deleted clerk.ClerkDeletedData
	if err := json.Unmarshal(data, &deleted); err != nil {
		return fmt.Errorf("failed to unmarshal deleted data: %w", err)
	}

	err := h.userService.DeleteProfile(ctx, deleted.ID)
	if errors.Is(err, services.ErrProfileNotFound) {
		return nil
	}
	return err
}

// verifySignature checks the svix headers Clerk signs webhooks with.
func (h *WebhookHandler) verifySignature(header http.Header, body []byte) error {
	if h.secret == "" {
		return nil
	}

	svixID := header.Get("svix-id")
	svixTimestamp := header.Get("svix-timestamp")
	svixSignature := header.Get("svix-signature")
	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		return errors.New("missing webhook signature headers")
	}

	ts, err := strconv.ParseInt(svixTimestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp: %w", err)
	}
	gap := h.now().Sub(time.Unix(ts, 0))
	if gap > webhookMaxClockGap || gap < -webhookMaxClockGap {
		return errors.New("timestamp outside tolerance")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(h.secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("bad webhook secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(svixID + "." + svixTimestamp + "." + string(body)))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, sig := range strings.Fields(svixSignature) {
		version, value, ok := strings.Cut(sig, ",")
		if ok && version == "v1" && hmac.Equal([]byte(value), []byte(expected)) {
			return nil
		}
	}
	return errors.New("no matching signature")
}
