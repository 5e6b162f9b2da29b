package writeup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	apphttp "github.com/msmm/aitools/internal/http"
	"github.com/msmm/aitools/internal/telemetry"
	"github.com/rs/zerolog"
)

// MaxUploadBytes caps a multipart upload request.
const MaxUploadBytes = 16 << 20

// Handler serves the writeup JSON API.
type Handler struct {
	writer   *Writer
	template *Template
}

// NewHandler creates the writeup API handler.
func NewHandler(writer *Writer, template *Template) *Handler {
	if template == nil {
		template = DefaultTemplate()
	}
	return &Handler{
		writer:   writer,
		template: template,
	}
}

// Register mounts the writeup routes on mux under prefix, e.g. "/api/writeup".
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("POST "+prefix+"/documents", h.UploadDocuments)
	mux.HandleFunc("POST "+prefix+"/quotes", h.UploadQuotes)
	mux.HandleFunc("POST "+prefix+"/descriptions", h.GenerateDescriptions)
	mux.HandleFunc("POST "+prefix+"/description", h.GenerateDescription)
	mux.HandleFunc("POST "+prefix+"/document", h.GenerateDocument)
}

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	ExtractedTexts []Document `json:"extracted_texts"`
}

type quotesResponse struct {
	Quotes         []Quote  `json:"quotes"`
	ProcessedFiles []string `json:"processed_files"`
	Warning        string   `json:"warning,omitempty"`
}

type descriptionRequest struct {
	DocumentsText   string          `json:"documents_text"`
	MaxWords        flexInt         `json:"max_words"`
	NumParagraphs   flexInt         `json:"num_paragraphs"`
	ParagraphTitles []string        `json:"paragraph_titles"`
	Keywords        []string        `json:"keywords"`
	Tense           string          `json:"tense"`
	UserPrompt      string          `json:"user_prompt"`
	Quotes          json.RawMessage `json:"quotes"`
	SelectedQuotes  []string        `json:"selected_quotes"`
	VersionNumber   flexInt         `json:"version_number"`
}

func (r descriptionRequest) options(quotes json.RawMessage) DescriptionOptions {
	return DescriptionOptions{
		DocumentsText:   r.DocumentsText,
		MaxWords:        int(r.MaxWords),
		NumParagraphs:   int(r.NumParagraphs),
		ParagraphTitles: nonBlank(r.ParagraphTitles),
		Keywords:        nonBlank(r.Keywords),
		Tense:           r.Tense,
		UserPrompt:      r.UserPrompt,
		Quotes:          SanitizeQuotes(quotes),
	}
}

type description struct {
	Version int    `json:"version"`
	Content string `json:"content"`
}

type descriptionsResponse struct {
	Descriptions []description `json:"descriptions"`
}

type singleDescriptionResponse struct {
	Success     bool        `json:"success"`
	Description description `json:"description"`
	Error       string      `json:"error,omitempty"`
}

// UploadDocuments extracts the text of every supported file in the "documents" field.
// Unsupported files are skipped, so the result may be empty.
func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	files, ok := h.readUpload(w, r, "documents", "No files uploaded")
	if !ok {
		return
	}

	docs := h.extractAll(r, files)
	for i := range docs {
		docs[i].Preview = Preview(docs[i].Text)
	}

	apphttp.WriteJSON(w, r, http.StatusOK, uploadResponse{ExtractedTexts: docs})
}

// UploadQuotes extracts client quotes from the files in the "quote_documents" field.
func (h *Handler) UploadQuotes(w http.ResponseWriter, r *http.Request) {
	files, ok := h.readUpload(w, r, "quote_documents", "No quote files uploaded")
	if !ok {
		return
	}

	docs := h.extractAll(r, files)

	resp := quotesResponse{
		Quotes:         []Quote{},
		ProcessedFiles: make([]string, 0, len(docs)),
	}

	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		resp.ProcessedFiles = append(resp.ProcessedFiles, doc.Filename)
		texts = append(texts, doc.Text)
	}

	combined := strings.Join(texts, "\n\n")
	switch {
	case len(docs) == 0:
		// only unsupported files were sent
	case strings.TrimSpace(combined) == "":
		resp.Warning = "No text content found in uploaded files"
	default:
		if quotes := h.writer.ExtractQuotes(r.Context(), combined); len(quotes) > 0 {
			resp.Quotes = quotes
		}
	}

	zerolog.Ctx(r.Context()).Info().
		Int("files", len(docs)).
		Int("quotes", len(resp.Quotes)).
		Msg("Quote extraction completed")

	apphttp.WriteJSON(w, r, http.StatusOK, resp)
}

// GenerateDescriptions produces three alternative project descriptions.
func (h *Handler) GenerateDescriptions(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if err := apphttp.DecodeJSON(w, r, &req); err != nil {
		apphttp.WriteJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	opts := req.options(FilterSelected(req.Quotes, req.SelectedQuotes))
	logger := zerolog.Ctx(r.Context())

	resp := descriptionsResponse{Descriptions: make([]description, 0, DescriptionVersions)}
	for i := 1; i <= DescriptionVersions; i++ {
		content, err := h.writer.Describe(r.Context(), opts)
		if err != nil {
			logger.Error().Err(err).Int("version", i).Str("op", "descriptions").Msg("Description generation failed")
			content = "Error: " + generationMessage(err)
		}
		resp.Descriptions = append(resp.Descriptions, description{Version: i, Content: content})
	}

	apphttp.WriteJSON(w, r, http.StatusOK, resp)
}

// GenerateDescription produces a single description version, retrying once on failure.
func (h *Handler) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if err := apphttp.DecodeJSON(w, r, &req); err != nil {
		apphttp.WriteJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	version := int(req.VersionNumber)
	if version <= 0 {
		version = 1
	}

	opts := req.options(FilterSelected(req.Quotes, req.SelectedQuotes))

	content, err := h.writer.DescribeWithRetry(r.Context(), opts)
	if err != nil {
		msg := generationMessage(err)
		zerolog.Ctx(r.Context()).Error().Err(err).Int("version", version).Str("op", "description").Msg("Description generation failed")
		apphttp.WriteJSON(w, r, http.StatusOK, singleDescriptionResponse{
			Success:     false,
			Error:       fmt.Sprintf("Failed after %d attempts: %s", descriptionAttempts, msg),
			Description: description{Version: version, Content: "Error: " + msg},
		})
		return
	}

	apphttp.WriteJSON(w, r, http.StatusOK, singleDescriptionResponse{
		Success:     true,
		Description: description{Version: version, Content: content},
	})
}

// GenerateDocument renders the project template and returns it as a download.
func (h *Handler) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	var fields DocumentFields
	if err := apphttp.DecodeJSON(w, r, &fields); err != nil {
		apphttp.WriteJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	data, err := h.template.Render(fields)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("op", "document").Msg("Failed to render document")
		apphttp.WriteJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "Error generating document"})
		return
	}

	w.Header().Set("Content-Type", DocumentContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DocumentFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type upload struct {
	filename string
	header   *multipart.FileHeader
}

// readUpload parses the multipart body and returns the supported files in field.
// It writes the error response itself and returns false when parsing fails or
// field is absent.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, field, missing string) ([]upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apphttp.WriteJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: "File too large"})
			return nil, false
		}
		apphttp.WriteJSON(w, r, http.StatusBadRequest, errorResponse{Error: missing})
		return nil, false
	}

	headers, present := r.MultipartForm.File[field]
	if !present || len(headers) == 0 {
		apphttp.WriteJSON(w, r, http.StatusBadRequest, errorResponse{Error: missing})
		return nil, false
	}

	files := make([]upload, 0, len(headers))
	for _, fh := range headers {
		name := SanitizeFilename(fh.Filename)
		if name == "" || !AllowedFile(name) {
			zerolog.Ctx(r.Context()).Debug().Str("filename", fh.Filename).Msg("Skipping unsupported upload")
			continue
		}
		files = append(files, upload{filename: name, header: fh})
	}

	return files, true
}

func (h *Handler) extractAll(r *http.Request, files []upload) []Document {
	docs := make([]Document, 0, len(files))

	for _, f := range files {
		var text string
		data, err := readFile(f.header)
		if err != nil {
			text = fmt.Sprintf("Error extracting text from file: %s", err)
		} else {
			text = ExtractText(f.filename, data)
		}

		docs = append(docs, Document{Filename: f.filename, Text: text})
	}

	telemetry.GetMetrics().UploadedFilesTotal.Add(r.Context(), int64(len(docs)))

	return docs
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// generationMessage is the client facing text for a generation failure.
func generationMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "text generation is not configured"
	case errors.Is(err, ErrRefused):
		return "the model did not return a description"
	case errors.Is(err, ErrEmptyResponse):
		return "no content generated"
	case errors.Is(err, context.DeadlineExceeded):
		return "text generation timed out"
	default:
		return "text generation failed"
	}
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// flexInt accepts a JSON number or a numeric string, form fields often send the latter.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		n = int(fl)
	}

	*f = flexInt(n)
	return nil
}
