package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/picasync/internal/models"
	"github.com/desertthunder/picasync/internal/shared"
)

// Signer produces the request signature headers.
type Signer struct {
	APIKey string
	Secret string
	Nonce  string
}

// NewSigner creates a [Signer]. An empty nonce is replaced by a random 32 character one.
func NewSigner(apiKey, secret, nonce string) Signer {
	if nonce == "" {
		nonce = strings.ReplaceAll(shared.GenerateID(), "-", "")
	}
	return Signer{APIKey: apiKey, Secret: secret, Nonce: nonce}
}

// Sign returns the hex signature of one request.
func (s Signer) Sign(path, ts, method string) string {
	raw := strings.ToLower(path + ts + s.Nonce + method + s.APIKey)
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// HeaderOpts carries the per-request header values.
type HeaderOpts struct {
	Channel  string
	Platform string
	Token    string
	Quality  models.ImageQuality
	Now      time.Time
}

// Apply sets the app and signature headers for a request to path.
func (s Signer) Apply(h http.Header, path, method string, opts HeaderOpts) {
	ts := strconv.FormatInt(opts.Now.Unix(), 10)

	h.Set("app-channel", opts.Channel)
	h.Set("app-uuid", "webUUID")
	h.Set("app-platform", opts.Platform)
	h.Set("Accept", "application/vnd.picacomic.com.v1+json")
	h.Set("Content-Type", "application/json; charset=UTF-8")
	h.Set("time", ts)
	h.Set("nonce", s.Nonce)
	h.Set("signature", s.Sign(path, ts, method))
	if opts.Quality != "" {
		h.Set("image-quality", string(opts.Quality))
	}
	if opts.Token != "" {
		h.Set("authorization", opts.Token)
	}
}
