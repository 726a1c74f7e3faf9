package upload

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// unsignedParams never take part in the signature.
var unsignedParams = map[string]struct{}{
	"file":          {},
	"api_key":       {},
	"cloud_name":    {},
	"resource_type": {},
	"signature":     {},
}

type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
)

// CanonicalParams sorts the signed parameters and joins them as k=v&k=v.
// Empty values are dropped.
func CanonicalParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if _, skip := unsignedParams[k]; skip || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

// Sign hashes the canonical parameters with the secret appended.
func Sign(params map[string]string, secret string, alg Algorithm) string {
	var h hash.Hash
	switch alg {
	case AlgorithmSHA256:
		h = sha256.New()
	default:
		h = sha1.New()
	}
	h.Write([]byte(CanonicalParams(params) + secret))
	return hex.EncodeToString(h.Sum(nil))
}

// Signature is what a backend needs to authenticate one upload.
type Signature struct {
	APIKey    string `json:"apiKey"`
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"signature"`
}

// Signer produces upload signatures. The timestamp is chosen by the signer.
type Signer interface {
	Sign(ctx context.Context, params map[string]string) (Signature, error)
}

// SecretSigner signs locally with the API secret. It belongs on the server.
type SecretSigner struct {
	APIKey    string
	Secret    string
	Algorithm Algorithm
	Now       func() time.Time
}

func (s *SecretSigner) Sign(_ context.Context, params map[string]string) (Signature, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return Signature{}, errors.New("upload signer: api secret required")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now().Unix()
	signed := make(map[string]string, len(params)+1)
	for k, v := range params {
		signed[k] = v
	}
	signed["timestamp"] = strconv.FormatInt(ts, 10)
	return Signature{APIKey: s.APIKey, Timestamp: ts, Value: Sign(signed, s.Secret, s.Algorithm)}, nil
}

// RemoteSigner obtains signatures from the wizard service so the secret
// never leaves the server.
type RemoteSigner struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewRemoteSigner targets a POST endpoint such as https://host/uploads/signature.
func NewRemoteSigner(endpoint, token string) *RemoteSigner {
	return &RemoteSigner{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *RemoteSigner) Sign(ctx context.Context, params map[string]string) (Signature, error) {
	payload, err := json.Marshal(map[string]any{"params": params})
	if err != nil {
		return Signature{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Signature{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.token) != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Signature{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return Signature{}, fmt.Errorf("signature service error: %s", msg)
	}
	var sig Signature
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		return Signature{}, fmt.Errorf("decode signature: %w", err)
	}
	if sig.Value == "" || sig.Timestamp == 0 {
		return Signature{}, errors.New("signature service returned an incomplete signature")
	}
	return sig, nil
}
