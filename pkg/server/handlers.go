package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sipeed/picocast/pkg/acquire"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/failure"
	"github.com/sipeed/picocast/pkg/generation"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/pipeline"
)

const (
	HeaderRunID         = "X-Picocast-Run-ID"
	HeaderGeneratedText = "X-Picocast-Generated-Text"

	maxHeaderTextRunes = 512
	maxJSONBodyBytes   = 1 << 20
	multipartOverhead  = 1 << 20
	maxFieldBytes      = 4 << 10
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type RunRequest struct {
	Text        string   `json:"text,omitempty"`
	URL         string   `json:"url,omitempty"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Voice       string   `json:"voice,omitempty"`
}

type RunResponse struct {
	RunID         string `json:"run_id"`
	Source        string `json:"source"`
	GeneratedText string `json:"generated_text"`
	AudioBase64   string `json:"audio_base64"`
	MIMEType      string `json:"mime_type"`
	Voice         string `json:"voice"`
	Model         string `json:"model"`
}

type ModelsResponse struct {
	Provider     string             `json:"provider"`
	DefaultModel string             `json:"default_model"`
	Models       []config.ModelInfo `json:"models"`
}

type VoicesResponse struct {
	DefaultVoice string         `json:"default_voice"`
	Voices       []config.Voice `json:"voices"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	in, opts, err := s.decodeRun(w, r)
	if err != nil {
		if failure.KindOf(err) != 0 {
			writeFailure(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	res, err := s.runner.Run(r.Context(), in, opts)
	if err != nil {
		writeFailure(w, err)
		return
	}

	w.Header().Set(HeaderRunID, res.RunID)
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, RunResponse{
			RunID:         res.RunID,
			Source:        res.Source,
			GeneratedText: res.Generated,
			AudioBase64:   base64.StdEncoding.EncodeToString(res.Audio.Audio),
			MIMEType:      res.Audio.MIMEType(),
			Voice:         res.Audio.Voice,
			Model:         res.Params.Model,
		})
		return
	}

	w.Header().Set(HeaderGeneratedText, url.PathEscape(headerText(res.Generated)))
	w.Header().Set("Content-Type", res.Audio.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio.Audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Audio.Audio); err != nil {
		logger.WarnCF(component, "failed to write audio response", map[string]any{
			"run_id": res.RunID,
			"error":  err.Error(),
		})
	}
}

// decodeRun reads either a JSON body or a multipart upload with a "file" part.
func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (acquire.Input, pipeline.Options, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return s.decodeMultipart(w, r)
	}

	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, pipeline.Options{}, errors.New("invalid JSON body: " + err.Error())
	}

	opts := pipeline.Options{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Voice:     req.Voice,
	}
	opts.Temperature = generation.DefaultTemperature
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}

	hasText, hasURL := req.Text != "", req.URL != ""
	switch {
	case hasText && hasURL:
		return nil, opts, errors.New(`exactly one of "text" or "url" is required`)
	case hasText:
		return acquire.PlainText{Text: req.Text}, opts, nil
	case hasURL:
		return acquire.RemoteDocument{URL: req.URL}, opts, nil
	default:
		return nil, opts, errors.New(`exactly one of "text" or "url" is required`)
	}
}

// decodeMultipart streams the parts so the "file" part is read at most one
// byte past the upload limit and the acquirer reports the size violation.
func (s *Server) decodeMultipart(w http.ResponseWriter, r *http.Request) (acquire.Input, pipeline.Options, error) {
	maxFile := int64(s.cfg.Limits.MaxFileSize)
	r.Body = http.MaxBytesReader(w, r.Body, maxFile+multipartOverhead)

	opts := pipeline.Options{Temperature: generation.DefaultTemperature}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, opts, errors.New("invalid multipart body: " + err.Error())
	}

	var doc *acquire.UploadedDocument
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, opts, multipartError(err, maxFile)
		}

		if part.FormName() == "file" && part.FileName() != "" {
			content, err := io.ReadAll(io.LimitReader(part, maxFile+1))
			if err != nil {
				return nil, opts, multipartError(err, maxFile)
			}
			doc = &acquire.UploadedDocument{
				Name:      part.FileName(),
				MediaType: part.Header.Get("Content-Type"),
				Content:   content,
			}
			if int64(len(content)) > maxFile {
				break
			}
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		if err != nil {
			return nil, opts, multipartError(err, maxFile)
		}
		if err := applyFormField(&opts, part.FormName(), string(value)); err != nil {
			return nil, opts, err
		}
	}

	if doc == nil {
		return nil, opts, errors.New(`multipart body requires a "file" part`)
	}
	return *doc, opts, nil
}

func applyFormField(opts *pipeline.Options, name, value string) error {
	value = strings.TrimSpace(value)
	switch name {
	case "model":
		opts.Model = value
	case "voice":
		opts.Voice = value
	case "max_tokens":
		if value == "" {
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.New("max_tokens must be an integer")
		}
		opts.MaxTokens = n
	case "temperature":
		if value == "" {
			return nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.New("temperature must be a number")
		}
		opts.Temperature = f
	}
	return nil
}

func multipartError(err error, maxFile int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return failure.Security("acquire", "File too large: request exceeds %d bytes (max: %d)", tooLarge.Limit, maxFile)
	}
	return errors.New("invalid multipart body: " + err.Error())
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VoicesResponse{
		DefaultVoice: config.DefaultVoice,
		Voices:       s.cfg.Voices(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := make([]config.ModelInfo, 0, len(s.cfg.Models()))
	for _, id := range s.cfg.Models() {
		info, ok := s.cfg.ModelInfoFor(id)
		if !ok {
			info = config.ModelInfo{ID: id, Name: id}
		}
		models = append(models, info)
	}
	writeJSON(w, http.StatusOK, ModelsResponse{
		Provider:     s.cfg.LLM.Provider,
		DefaultModel: s.cfg.DefaultModel(),
		Models:       models,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	switch failure.KindOf(err) {
	case failure.KindSecurity:
		return http.StatusBadRequest
	case failure.KindAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindName(err error) string {
	if k := failure.KindOf(err); k != 0 {
		return k.String()
	}
	return "internal_error"
}

// headerText bounds s for use in a response header.
func headerText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxHeaderTextRunes {
		return string(runes[:maxHeaderTextRunes])
	}
	return s
}

// writeFailure answers with the component's message only; the cause chain can
// carry upstream response text and is logged instead.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := "internal error"
	var fe *failure.Error
	if errors.As(err, &fe) {
		message = fe.Message
		if message == "" {
			message = fe.Kind.String()
		}
	}

	fields := map[string]any{"status": status, "error": err.Error()}
	if status >= http.StatusInternalServerError {
		logger.ErrorCF(component, "Run failed", fields)
	} else {
		logger.WarnCF(component, "Run rejected", fields)
	}
	writeError(w, status, kindName(err), message)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorCF(component, "failed to encode JSON response", map[string]any{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, ErrorResponse{Error: kind, Message: message})
}
