// Package webhook receives pushed enhanced-transaction events and hands each
// one to the live handler.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

const (
	Path            = "/webhook/helius"
	SignatureHeader = "helius-signature"

	maxBodyBytes          = 10 << 20
	defaultReleaseTimeout = 10 * time.Second
)

// Receiver verifies and unpacks webhook deliveries.
type Receiver struct {
	secret   []byte
	dispatch *Dispatcher
}

// NewReceiver returns a receiver; an empty secret disables signature checks.
func NewReceiver(secret string, d *Dispatcher) *Receiver {
	r := &Receiver{dispatch: d}
	if secret != "" {
		r.secret = []byte(secret)
	}
	return r
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (r *Receiver) verify(req *http.Request, body []byte) bool {
	if r.secret == nil {
		return true
	}
	got, err := hex.DecodeString(req.Header.Get(SignatureHeader))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, r.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "unreadable body"})
		return
	}

	if !r.verify(req, body) {
		monitor.IncLiveEvent("bad_signature")
		logger.Warn().Str("remote", req.RemoteAddr).Msg("webhook signature mismatch")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid webhook signature"})
		return
	}

	if !gjson.ValidBytes(body) {
		monitor.IncLiveEvent("bad_json")
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid JSON"})
		return
	}

	payload := gjson.ParseBytes(body)
	events := []gjson.Result{payload}
	if payload.IsArray() {
		events = payload.Array()
	}

	var received int
	for _, tx := range events {
		if !tx.IsObject() {
			continue
		}
		if err = r.dispatch.Dispatch(tx); err != nil {
			break
		}
		received++
	}

	// the upstream redelivers on 5xx; events already accepted are deduplicated by signature
	if err != nil {
		monitor.IncLiveEvent("rejected")
		logger.Warn().Err(err).Int("received", received).Int("total", len(events)).Msg("webhook batch not fully accepted")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"detail": "Not accepting events", "received": received})
		return
	}
	monitor.IncLiveEvent("received")

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "received": received})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
