package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured 视觉识别未配置
var ErrNotConfigured = errors.New("vision API is not configured")

// Common electrical materials, fed to the model as vocabulary hints.
var materiauxCommuns = []string{
	"Fil 14/2 NMD",
	"Fil 12/2 NMD",
	"Fil 10/3 NMD",
	"Câble TECK 3C #10",
	"Boîte 4x4",
	"Boîte octogonale",
	"Conduit EMT 3/4\"",
	"Conduit EMT 1\"",
	"Connecteur EMT 3/4\"",
	"Disjoncteur 15A",
	"Disjoncteur 20A",
	"Disjoncteur 30A 2P",
	"Prise 15A",
	"Prise 20A",
	"Prise GFCI",
}

const promptTemplate = `Analyse cette photo de matériel électrique. Identifie le matériel et estime la quantité visible.

Réponds UNIQUEMENT en JSON valide, sans markdown:
{"item": "nom du matériel électrique", "quantite": "nombre estimé", "unite": "unité|pi|m|rouleau|boîte", "confidence": 0.85}

Matériaux connus: %s

Si tu ne reconnais pas de matériel électrique, réponds: {"item": "Non identifié", "quantite": "1", "unite": "unité", "confidence": 0.0}`

// Detection is one recognized material.
type Detection struct {
	Item       string  `json:"item"`
	Quantite   string  `json:"quantite"`
	Unite      string  `json:"unite"`
	Confidence float64 `json:"confidence"`
}

// Config 视觉识别配置
type Config struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Service proxies material-detection requests to the hosted vision API so
// the API key never reaches the client.
type Service struct {
	cfg    Config
	client *http.Client
}

// NewService 创建视觉识别服务
func NewService(cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Service{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Enabled reports whether the proxy is usable.
func (s *Service) Enabled() bool {
	return s.cfg.APIURL != "" && s.cfg.APIKey != ""
}

// request/response shapes for the messages API

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string     `json:"type"`
	Text   string     `json:"text,omitempty"`
	Source *apiSource `json:"source,omitempty"`
}

type apiSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// DetectMaterial sends one base64 image to the vision API and parses the
// detection out of the model's reply.
func (s *Service) DetectMaterial(ctx context.Context, base64Data, mediaType string) (*Detection, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	prompt := fmt.Sprintf(promptTemplate, strings.Join(materiauxCommuns, ", "))

	reqBody := apiRequest{
		Model:     s.cfg.Model,
		MaxTokens: 500,
		Messages: []apiMessage{
			{
				Role: "user",
				Content: []apiContent{
					{
						Type: "image",
						Source: &apiSource{
							Type:      "base64",
							MediaType: mediaType,
							Data:      base64Data,
						},
					},
					{
						Type: "text",
						Text: prompt,
					},
				},
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read vision response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode vision response: %w", err)
	}
	if len(apiResp.Content) == 0 {
		return nil, errors.New("vision response contained no content")
	}

	return parseDetection(apiResp.Content[0].Text)
}

// parseDetection strips any markdown fencing the model wrapped around its
// JSON reply.
func parseDetection(text string) (*Detection, error) {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var detection Detection
	if err := json.Unmarshal([]byte(clean), &detection); err != nil {
		return nil, fmt.Errorf("failed to parse detection: %w", err)
	}

	if detection.Item == "" {
		detection.Item = "Non identifié"
	}
	if detection.Quantite == "" {
		detection.Quantite = "1"
	}
	if detection.Unite == "" {
		detection.Unite = "unité"
	}
	return &detection, nil
}
