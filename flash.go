package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName = "mpms_flash"
	flashPendingKey = "mpms.flash"

	flashSuccess = "success"
	flashDanger  = "danger"
	flashWarning = "warning"
	flashInfo    = "info"
)

type flashMessage struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// addFlash queues a message for the next rendered page, which may be
// after a redirect.
func addFlash(c *gin.Context, category string, message string) {
	pending := pendingFlashes(c)
	pending = append(pending, flashMessage{Category: category, Message: message})
	c.Set(flashPendingKey, pending)
	writeFlashCookie(c, pending)
}

// popFlashes returns the messages carried over from the previous request
// plus those added during this one, and clears the cookie.
func popFlashes(c *gin.Context) []flashMessage {
	var messages []flashMessage
	if raw, err := c.Cookie(flashCookieName); err == nil && raw != "" {
		messages = decodeFlashes(raw)
	}
	messages = append(messages, pendingFlashes(c)...)
	c.Set(flashPendingKey, []flashMessage(nil))
	if len(messages) > 0 {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(flashCookieName, "", -1, "/", "", false, true)
	}
	return messages
}

func pendingFlashes(c *gin.Context) []flashMessage {
	raw, ok := c.Get(flashPendingKey)
	if !ok {
		return nil
	}
	pending, _ := raw.([]flashMessage)
	return pending
}

func writeFlashCookie(c *gin.Context, messages []flashMessage) {
	data, err := json.Marshal(messages)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, base64.RawURLEncoding.EncodeToString(data), 0, "/", "", false, true)
}

func decodeFlashes(raw string) []flashMessage {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var messages []flashMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil
	}
	return messages
}
