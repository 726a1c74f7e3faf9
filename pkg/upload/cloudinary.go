package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marinehub/pkg/domain"
)

const defaultCloudinaryBase = "https://api.cloudinary.com"

// Backend stores one prepared file and returns its normalized record.
type Backend interface {
	Upload(ctx context.Context, f Prepared, opts Options) (domain.UploadedFile, error)
}

// Remover is implemented by backends that can delete stored assets.
type Remover interface {
	Remove(ctx context.Context, file domain.UploadedFile) error
}

// CloudinaryConfig configures signed uploads to a Cloudinary-style API.
type CloudinaryConfig struct {
	BaseURL    string
	CloudName  string
	Signer     Signer
	HTTPClient *http.Client
}

// CloudinaryBackend posts signed multipart uploads.
type CloudinaryBackend struct {
	baseURL    string
	cloudName  string
	signer     Signer
	httpClient *http.Client
}

func NewCloudinaryBackend(cfg CloudinaryConfig) (*CloudinaryBackend, error) {
	if strings.TrimSpace(cfg.CloudName) == "" {
		return nil, errors.New("cloudinary: cloud name required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("cloudinary: signer required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultCloudinaryBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &CloudinaryBackend{
		baseURL:    base,
		cloudName:  cfg.CloudName,
		signer:     cfg.Signer,
		httpClient: httpClient,
	}, nil
}

type cloudinaryResponse struct {
	PublicID         string `json:"public_id"`
	SecureURL        string `json:"secure_url"`
	OriginalFilename string `json:"original_filename"`
	Bytes            int64  `json:"bytes"`
	Format           string `json:"format"`
	ResourceType     string `json:"resource_type"`
	CreatedAt        string `json:"created_at"`
	Result           string `json:"result"`
	Error            *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *CloudinaryBackend) Upload(ctx context.Context, f Prepared, opts Options) (domain.UploadedFile, error) {
	params := map[string]string{}
	if opts.Folder != "" {
		params["folder"] = opts.Folder
	}
	if len(opts.Tags) > 0 {
		params["tags"] = strings.Join(opts.Tags, ",")
	}
	sig, err := b.signer.Sign(ctx, params)
	if err != nil {
		return domain.UploadedFile{}, &RequestError{Filename: f.Name, Message: "sign upload", Err: err}
	}
	resourceType := string(f.Kind)
	fields := map[string]string{
		"api_key":       sig.APIKey,
		"cloud_name":    b.cloudName,
		"timestamp":     strconv.FormatInt(sig.Timestamp, 10),
		"signature":     sig.Value,
		"resource_type": resourceType,
	}
	for k, v := range params {
		fields[k] = v
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, fields, f))
	}()

	endpoint := fmt.Sprintf("%s/v1_1/%s/%s/upload", b.baseURL, url.PathEscape(b.cloudName), resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		_ = pr.Close()
		return domain.UploadedFile{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out cloudinaryResponse
	if err := b.do(req, f.Name, &out); err != nil {
		_ = pr.Close()
		return domain.UploadedFile{}, err
	}
	if out.PublicID == "" || out.SecureURL == "" {
		return domain.UploadedFile{}, &RequestError{Filename: f.Name, Message: "storage response missing public_id or secure_url"}
	}
	uploadedAt := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, out.CreatedAt); err == nil {
		uploadedAt = t.UTC()
	}
	size := out.Bytes
	if size == 0 {
		size = f.Size
	}
	return domain.UploadedFile{
		StorageID:        out.PublicID,
		OriginalFilename: f.Name,
		URL:              out.SecureURL,
		SizeBytes:        size,
		Format:           out.Format,
		Kind:             f.Kind,
		UploadedAt:       uploadedAt,
	}, nil
}

// Remove destroys an uploaded asset with a signed destroy call.
func (b *CloudinaryBackend) Remove(ctx context.Context, file domain.UploadedFile) error {
	params := map[string]string{"public_id": file.StorageID}
	sig, err := b.signer.Sign(ctx, params)
	if err != nil {
		return fmt.Errorf("sign destroy: %w", err)
	}
	form := url.Values{}
	form.Set("public_id", file.StorageID)
	form.Set("api_key", sig.APIKey)
	form.Set("timestamp", strconv.FormatInt(sig.Timestamp, 10))
	form.Set("signature", sig.Value)
	kind := string(file.Kind)
	if kind == "" {
		kind = string(domain.MediaImage)
	}
	endpoint := fmt.Sprintf("%s/v1_1/%s/%s/destroy", b.baseURL, url.PathEscape(b.cloudName), kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out cloudinaryResponse
	if err := b.do(req, file.OriginalFilename, &out); err != nil {
		return err
	}
	if out.Result != "" && out.Result != "ok" && out.Result != "not found" {
		return &RequestError{Filename: file.OriginalFilename, Message: "destroy result " + out.Result}
	}
	return nil
}

func (b *CloudinaryBackend) do(req *http.Request, filename string, out *cloudinaryResponse) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return &RequestError{Filename: filename, Err: err}
	}
	defer resp.Body.Close()
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
	if resp.StatusCode >= 400 {
		msg := resp.Status
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return &RequestError{Filename: filename, Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &RequestError{Filename: filename, Status: resp.StatusCode, Message: "decode storage response", Err: decodeErr}
	}
	return nil
}

func writeUploadForm(mw *multipart.Writer, fields map[string]string, f Prepared) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return err
	}
	if f.Content != nil {
		if _, err := io.Copy(part, f.Content); err != nil {
			return err
		}
	}
	return mw.Close()
}
