package writeup

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	documentPart = "word/document.xml"

	DocumentFilename    = "MSMM_Engineering_Project.docx"
	DocumentContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)
	paragraphPattern   = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textNodePattern    = regexp.MustCompile(`(<w:t(?:\s[^>]*)?>)([^<]*)(</w:t>)`)
)

// DocumentFields are the values substituted into the project template.
type DocumentFields struct {
	TitleLocation    string `json:"title_location"`
	YearProfessional string `json:"year_professional"`
	YearConstruction string `json:"year_construction"`
	ProjectOwner     string `json:"project_owner"`
	PointOfContact   string `json:"point_of_contact"`
	Telephone        string `json:"telephone"`
	FirmName         string `json:"firm_name"`
	FirmLocation     string `json:"firm_location"`
	Roles            string `json:"roles"`
	BriefDescription string `json:"brief_description"`
}

func (f DocumentFields) values() map[string]string {
	return map[string]string{
		"title_location":    f.TitleLocation,
		"year_professional": f.YearProfessional,
		"year_construction": f.YearConstruction,
		"project_owner":     f.ProjectOwner,
		"point_of_contact":  f.PointOfContact,
		"telephone":         f.Telephone,
		"firm_name":         f.FirmName,
		"firm_location":     f.FirmLocation,
		"roles":             f.Roles,
		"brief_description": f.BriefDescription,
	}
}

// Template is a .docx file with {{ field }} placeholders.
type Template struct {
	data []byte
}

// LoadTemplate reads a template from disk, an empty path selects the built in template.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("template is not a docx file: %w", err)
	}

	return &Template{data: data}, nil
}

// Render fills the placeholders in the document body, headers and footers.
// Unknown placeholders are replaced with an empty string.
func (t *Template) Render(fields DocumentFields) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(t.data), int64(len(t.data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}

	values := fields.values()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range zr.File {
		if err := copyPart(zw, f, values); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish document: %w", err)
	}

	return buf.Bytes(), nil
}

func copyPart(zw *zip.Writer, f *zip.File, values map[string]string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.Name,
		Method:   f.Method,
		Modified: f.Modified,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}

	if !isTemplatedPart(f.Name) {
		_, err = io.Copy(w, rc)
		return err
	}

	content, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}

	_, err = w.Write(fillPlaceholders(content, values))
	return err
}

func isTemplatedPart(name string) bool {
	if name == documentPart {
		return true
	}
	return strings.HasPrefix(name, "word/") && strings.HasSuffix(name, ".xml") &&
		(strings.HasPrefix(name, "word/header") || strings.HasPrefix(name, "word/footer"))
}

func fillPlaceholders(content []byte, values map[string]string) []byte {
	content = paragraphPattern.ReplaceAllFunc(content, joinSplitPlaceholders)

	return placeholderPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		key := string(placeholderPattern.FindSubmatch(match)[1])
		return []byte(runText(values[key]))
	})
}

// joinSplitPlaceholders moves every placeholder that Word spread over
// several <w:t> nodes of a paragraph into the node where it starts. The
// nodes it leaves behind keep their formatting and any remaining text.
func joinSplitPlaceholders(paragraph []byte) []byte {
	nodes := textNodePattern.FindAllSubmatchIndex(paragraph, -1)
	if len(nodes) < 2 {
		return paragraph
	}

	var joined []byte
	owner := make([]int, 0, len(paragraph))
	for i, n := range nodes {
		joined = append(joined, paragraph[n[4]:n[5]]...)
		for range n[5] - n[4] {
			owner = append(owner, i)
		}
	}

	split := false
	for _, m := range placeholderPattern.FindAllIndex(joined, -1) {
		first := owner[m[0]]
		if owner[m[1]-1] == first {
			continue
		}
		split = true
		for k := m[0]; k < m[1]; k++ {
			owner[k] = first
		}
	}
	if !split {
		return paragraph
	}

	texts := make([][]byte, len(nodes))
	for k, c := range joined {
		texts[owner[k]] = append(texts[owner[k]], c)
	}

	out := make([]byte, 0, len(paragraph))
	last := 0
	for i, n := range nodes {
		out = append(out, paragraph[last:n[4]]...)
		out = append(out, texts[i]...)
		last = n[5]
	}
	return append(out, paragraph[last:]...)
}

// runText escapes a value for use inside <w:t>, turning newlines into line breaks.
func runText(value string) string {
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")

	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteString(`</w:t><w:br/><w:t xml:space="preserve">`)
		}
		_ = xml.EscapeText(&sb, []byte(line))
	}

	return sb.String()
}

// DefaultTemplate returns the built in project sheet.
func DefaultTemplate() *Template {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{documentPart, defaultDocumentXML()},
	}

	for _, p := range parts {
		// writes to an in-memory buffer cannot fail
		w, _ := zw.Create(p.name)
		_, _ = io.WriteString(w, p.content)
	}
	_ = zw.Close()

	return &Template{data: buf.Bytes()}
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

var defaultRows = []struct {
	label string
	field string
}{
	{"Title and Location", "title_location"},
	{"Year Completed (Professional Services)", "year_professional"},
	{"Year Completed (Construction)", "year_construction"},
	{"Project Owner", "project_owner"},
	{"Point of Contact", "point_of_contact"},
	{"Telephone", "telephone"},
	{"Firm Name", "firm_name"},
	{"Firm Location", "firm_location"},
	{"Role", "roles"},
	{"Brief Description", "brief_description"},
}

func defaultDocumentXML() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	sb.WriteString(`<w:p><w:r><w:rPr><w:b/><w:sz w:val="28"/></w:rPr><w:t>Example Project</w:t></w:r></w:p>`)

	for _, row := range defaultRows {
		fmt.Fprintf(&sb, `<w:p><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">%s: </w:t></w:r>`, row.label)
		fmt.Fprintf(&sb, `<w:r><w:t xml:space="preserve">{{ %s }}</w:t></w:r></w:p>`, row.field)
	}

	sb.WriteString(`<w:sectPr/></w:body></w:document>`)

	return sb.String()
}
