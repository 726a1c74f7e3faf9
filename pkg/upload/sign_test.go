package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCanonicalParamsSortsAndSkipsUnsigned(t *testing.T) {
	got := CanonicalParams(map[string]string{
		"timestamp":     "1700000000",
		"folder":        "repairs",
		"api_key":       "key",
		"cloud_name":    "demo",
		"resource_type": "video",
		"file":          "@engine.mp4",
		"tags":          "",
	})
	if want := "folder=repairs&timestamp=1700000000"; got != want {
		t.Fatalf("CanonicalParams() = %q, want %q", got, want)
	}
}

func TestSignMatchesVendorExample(t *testing.T) {
	params := map[string]string{
		"public_id": "sample_image",
		"timestamp": "1315060510",
		"eager":     "w_400,h_300,c_pad|w_260,h_200,c_crop",
	}
	if got, want := Sign(params, "abcd", AlgorithmSHA1), "bfd09f95f331f558cbd1320e67aa8d488770583e"; got != want {
		t.Fatalf("Sign() = %q, want %q", got, want)
	}
}

func TestSecretSignerAddsTimestamp(t *testing.T) {
	signer := &SecretSigner{
		APIKey:    "key",
		Secret:    "s3cret",
		Algorithm: AlgorithmSHA256,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	}
	sig, err := signer.Sign(context.Background(), map[string]string{"folder": "repairs"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sig.Timestamp != 1700000000 || sig.APIKey != "key" {
		t.Fatalf("unexpected signature: %+v", sig)
	}
	if want := "53efdbc3e795135d06fa0a258132a7de785ba60e00fa789f83f25aebd7456395"; sig.Value != want {
		t.Fatalf("signature = %q, want %q", sig.Value, want)
	}
}

func TestSecretSignerRequiresSecret(t *testing.T) {
	if _, err := (&SecretSigner{APIKey: "key"}).Sign(context.Background(), nil); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestRemoteSigner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		var body struct {
			Params map[string]string `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Params["folder"] != "repairs" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad params"})
			return
		}
		_ = json.NewEncoder(w).Encode(Signature{APIKey: "key", Timestamp: 1700000000, Value: "abc"})
	}))
	defer srv.Close()

	sig, err := NewRemoteSigner(srv.URL, "tok").Sign(context.Background(), map[string]string{"folder": "repairs"})
	if err != nil {
		t.Fatalf("remote sign: %v", err)
	}
	if sig.Value != "abc" || sig.Timestamp != 1700000000 {
		t.Fatalf("unexpected signature: %+v", sig)
	}

	if _, err := NewRemoteSigner(srv.URL, "").Sign(context.Background(), nil); err == nil {
		t.Fatalf("expected remote signer error without token")
	}
}
