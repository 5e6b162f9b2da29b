package writeup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/ledongthuc/pdf"
)

const (
	previewLength = 1000

	docFallbackText = "Could not extract text from .doc file. Please use .docx format."
)

var allowedExtensions = map[string]bool{
	"txt":  true,
	"pdf":  true,
	"doc":  true,
	"docx": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Document is the text extracted from one uploaded file.
type Document struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
	Preview  string `json:"preview,omitempty"`
}

// AllowedFile reports whether the filename carries a supported extension.
func AllowedFile(filename string) bool {
	return allowedExtensions[extension(filename)]
}

// SanitizeFilename reduces an uploaded filename to a safe base name.
func SanitizeFilename(filename string) string {
	// browsers on windows may send the full client path
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	return name
}

// Preview returns the first 1000 characters of text, with "..." appended when truncated.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength]) + "..."
}

// ExtractText returns the text content of an uploaded file. Extraction failures
// are reported inside the returned text so one bad file does not fail the upload.
func ExtractText(filename string, data []byte) string {
	var (
		text string
		err  error
	)

	switch extension(filename) {
	case "pdf":
		text, err = extractPDF(data)
	case "docx":
		text, err = extractDOCX(data)
	case "doc":
		text, err = extractDOCX(data)
		if err != nil {
			return docFallbackText
		}
	case "txt":
		if !utf8.Valid(data) {
			err = errors.New("file is not valid UTF-8")
		}
		text = string(data)
	default:
		err = fmt.Errorf("unsupported file type %q", path.Ext(filename))
	}

	if err != nil {
		return fmt.Sprintf("Error extracting text from file: %s", err)
	}

	return text
}

func extension(filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}

		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", documentPart, err)
		}
		defer rc.Close()

		return documentText(rc)
	}

	return "", fmt.Errorf("docx is missing %s", documentPart)
}

// documentText walks WordprocessingML and keeps the run text, one line per paragraph.
func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		sb     strings.Builder
		inText bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br", "cr":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}
