package myinvois

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config del cliente REST MyInvois.
type Config struct {
	Env          string // "sandbox" | "prod" (en "dev" el cliente no se usa)
	ClientID     string // credenciales OAuth2 client-credentials del ERP
	ClientSecret string
	TIN          string // TIN del emisor (dueño de los documentos)
}

// Client implementa DocumentSubmitter contra la API REST de MyInvois.
// Usa net/http de la stdlib; no requiere librerías de terceros.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ DocumentSubmitter = (*Client)(nil)

// NewClient construye el cliente con un timeout de red generoso (60 s): el
// portal puede tardar varios segundos en responder una entrega.
func NewClient(cfg Config) (*Client, error) {
	var base string
	switch cfg.Env {
	case AppEnvSandbox:
		base = baseURLSandbox
	case AppEnvProd:
		base = baseURLProd
	default:
		return nil, fmt.Errorf("myinvois: entorno desconocido %q (usar 'sandbox' o 'prod')", cfg.Env)
	}
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// ── Autenticación ─────────────────────────────────────────────────────────────

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token devuelve un access token vigente, renovándolo si expiró. El portal
// emite tokens de ~1 h; se renueva 1 minuto antes por margen de reloj.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", "InvoicingAPI")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/connect/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("myinvois: crear request de token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("myinvois: obtener token: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("myinvois: token HTTP %d: %s", resp.StatusCode, string(body))
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("myinvois: parsear token: %w", err)
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// ── Submit ────────────────────────────────────────────────────────────────────

type submissionDocument struct {
	Format       string `json:"format"`
	Document     string `json:"document"`     // XML en Base64
	DocumentHash string `json:"documentHash"` // SHA-256 hex del XML
	CodeNumber   string `json:"codeNumber"`
}

type submissionRequest struct {
	Documents []submissionDocument `json:"documents"`
}

type submissionResponse struct {
	SubmissionUID     string `json:"submissionUid"`
	AcceptedDocuments []struct {
		UUID              string `json:"uuid"`
		InvoiceCodeNumber string `json:"invoiceCodeNumber"`
		LongID            string `json:"longId"`
		Status            string `json:"status"`
		DateTimeValidated string `json:"dateTimeValidated"`
	} `json:"acceptedDocuments"`
	RejectedDocuments []struct {
		InvoiceCodeNumber string `json:"invoiceCodeNumber"`
		Error             struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details []struct {
				Message string `json:"message"`
			} `json:"details"`
		} `json:"error"`
	} `json:"rejectedDocuments"`
}

// Submit entrega el documento consolidado firmado al portal.
func (c *Client) Submit(ctx context.Context, sr *SubmitRequest) (*SubmitResult, error) {
	if sr == nil || len(sr.DocumentXML) == 0 {
		return nil, fmt.Errorf("myinvois: documento vacío")
	}
	hash := sha256.Sum256(sr.DocumentXML)
	payload := submissionRequest{Documents: []submissionDocument{{
		Format:       "XML",
		Document:     base64.StdEncoding.EncodeToString(sr.DocumentXML),
		DocumentHash: hex.EncodeToString(hash[:]),
		CodeNumber:   sr.CodeNumber,
	}}}

	raw, status, err := c.doJSON(ctx, http.MethodPost, "/api/v1.0/documentsubmissions", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		// El portal responde 4xx con el mismo shape de rechazos; se intenta
		// parsear antes de rendirse para preservar code/message/details.
		if res := parseSubmission(raw, sr.CodeNumber); res != nil && len(res.Rejected) > 0 {
			return res, nil
		}
		return nil, fmt.Errorf("myinvois: envío HTTP %d: %s", status, string(raw))
	}
	res := parseSubmission(raw, sr.CodeNumber)
	if res == nil {
		return nil, fmt.Errorf("myinvois: respuesta de envío inesperada: %s", string(raw))
	}
	return res, nil
}

func parseSubmission(raw []byte, codeNumber string) *SubmitResult {
	var sub submissionResponse
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil
	}
	res := &SubmitResult{SubmissionUID: sub.SubmissionUID}
	for _, acc := range sub.AcceptedDocuments {
		res.Accepted = append(res.Accepted, AcceptedDocument{ID: acc.InvoiceCodeNumber, UUID: acc.UUID})
		if acc.InvoiceCodeNumber == codeNumber {
			res.UUID = acc.UUID
			res.LongID = acc.LongID
			res.Status = acc.Status
			if res.Status == "" {
				res.Status = PortalStatusSubmitted
			}
			if ts, err := time.Parse(time.RFC3339, acc.DateTimeValidated); err == nil {
				res.ValidatedAt = &ts
			}
		}
	}
	for _, rej := range sub.RejectedDocuments {
		details := make([]string, 0, len(rej.Error.Details))
		for _, d := range rej.Error.Details {
			details = append(details, d.Message)
		}
		res.Rejected = append(res.Rejected, RejectedDocument{
			ID: rej.InvoiceCodeNumber,
			Error: DocumentError{
				Code:    rej.Error.Code,
				Message: rej.Error.Message,
				Details: details,
			},
		})
	}
	res.Success = res.UUID != ""
	return res
}

// ── GetStatus ─────────────────────────────────────────────────────────────────

type documentDetailsResponse struct {
	UUID              string `json:"uuid"`
	LongID            string `json:"longId"`
	Status            string `json:"status"`
	DateTimeValidated string `json:"dateTimeValidated"`
}

// GetStatus consulta los detalles del documento. Una respuesta con el mismo
// estado no es un error: se reporta Updated=false.
func (c *Client) GetStatus(ctx context.Context, documentUUID string) (*StatusResult, error) {
	if documentUUID == "" {
		return nil, fmt.Errorf("myinvois: uuid vacío")
	}
	raw, status, err := c.doJSON(ctx, http.MethodGet,
		"/api/v1.0/documents/"+url.PathEscape(documentUUID)+"/details", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("myinvois: consulta de estado HTTP %d: %s", status, string(raw))
	}
	var det documentDetailsResponse
	if err := json.Unmarshal(raw, &det); err != nil {
		return nil, fmt.Errorf("myinvois: parsear detalles: %w", err)
	}
	res := &StatusResult{Status: det.Status, LongID: det.LongID}
	if ts, err := time.Parse(time.RFC3339, det.DateTimeValidated); err == nil {
		res.ValidatedAt = &ts
	}
	// Updated lo decide el caller comparando contra su estado persistido;
	// aquí solo se marca si el portal ya salió de "Submitted".
	res.Updated = det.Status != "" && det.Status != PortalStatusSubmitted
	return res, nil
}

// ── Cancel ────────────────────────────────────────────────────────────────────

type stateRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Cancel solicita la cancelación del documento con la razón dada.
func (c *Client) Cancel(ctx context.Context, documentUUID, reason string) (*CancelResult, error) {
	if documentUUID == "" {
		return nil, fmt.Errorf("myinvois: uuid vacío")
	}
	raw, status, err := c.doJSON(ctx, http.MethodPut,
		"/api/v1.0/documents/state/"+url.PathEscape(documentUUID)+"/state",
		stateRequest{Status: "cancelled", Reason: reason})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return &CancelResult{Success: false,
			Message: fmt.Sprintf("HTTP %d: %s", status, string(raw))}, nil
	}
	return &CancelResult{Success: true, Message: "documento cancelado"}, nil
}

// ── Helper HTTP ───────────────────────────────────────────────────────────────

// doJSON ejecuta una llamada autenticada con cuerpo/respuesta JSON y
// devuelve el cuerpo crudo y el status (máx. 1 MB de respuesta).
func (c *Client) doJSON(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("myinvois: serializar cuerpo: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("myinvois: crear request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("myinvois: timeout o cancelación: %w", ctx.Err())
		}
		return nil, 0, fmt.Errorf("myinvois: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("myinvois: leer respuesta: %w", err)
	}
	return raw, resp.StatusCode, nil
}
