package enum

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// ExtractedContent represents text extracted from a container file.
type ExtractedContent struct {
	Name    string // member within the container (e.g., "word/document.xml")
	Content []byte // extracted text content
}

var extractors = map[string]func([]byte) ([]ExtractedContent, error){
	"docx": extractDOCX,
	"odt":  extractODT,
	"pdf":  extractPDF,
	"eml":  extractEML,
}

// Extractable reports whether ext (without the dot) names a supported
// container format.
func Extractable(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// ExtractText extracts text from supported container files (docx, odt, pdf, eml).
func ExtractText(path string, content []byte) ([]ExtractedContent, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	fn, ok := extractors[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: .%s", ext)
	}
	return fn(content)
}

// extractDOCX extracts text from Word documents (docx format).
func extractDOCX(content []byte) ([]ExtractedContent, error) {
	return extractZipMember(content, "word/document.xml")
}

// extractODT extracts text from OpenDocument text files.
func extractODT(content []byte) ([]ExtractedContent, error) {
	return extractZipMember(content, "content.xml")
}

func extractZipMember(content []byte, member string) ([]ExtractedContent, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open document as zip: %w", err)
	}

	for _, file := range zipReader.File {
		if file.Name != member {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}

		text := extractXMLText(data)
		if len(text) == 0 {
			return nil, nil
		}
		return []ExtractedContent{{Name: file.Name, Content: []byte(text)}}, nil
	}
	return nil, fmt.Errorf("missing %s", member)
}

// extractPDF extracts text from PDF files using ledongthuc/pdf.
func extractPDF(content []byte) ([]ExtractedContent, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var text strings.Builder
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Continue on error to extract what we can
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	extracted := text.String()
	if len(strings.TrimSpace(extracted)) == 0 {
		return nil, nil
	}
	return []ExtractedContent{{Name: "content", Content: []byte(extracted)}}, nil
}

// extractEML extracts the subject and text/plain parts of an email.
func extractEML(content []byte) ([]ExtractedContent, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	var text strings.Builder
	if subject := msg.Header.Get("Subject"); subject != "" {
		dec := new(mime.WordDecoder)
		if decoded, err := dec.DecodeHeader(subject); err == nil {
			subject = decoded
		}
		text.WriteString(subject)
		text.WriteString("\n\n")
	}
	if err := appendMailText(&text, msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body); err != nil {
		return nil, err
	}

	if len(strings.TrimSpace(text.String())) == 0 {
		return nil, nil
	}
	return []ExtractedContent{{Name: "body", Content: []byte(text.String())}}, nil
}

func appendMailText(w *strings.Builder, contentType, encoding string, body io.Reader) error {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading mail part: %w", err)
			}
			if err := appendMailText(w, part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part); err != nil {
				return err
			}
		}
	}
	if mediaType != "text/plain" {
		return nil
	}

	switch strings.ToLower(encoding) {
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading mail body: %w", err)
	}
	w.Write(data)
	return nil
}

// extractXMLText collects the text nodes of a document body, one line per
// paragraph.
func extractXMLText(data []byte) string {
	var text strings.Builder
	var para strings.Builder
	decoder := xml.NewDecoder(bytes.NewReader(data))

	flush := func() {
		if line := cleanText(para.String()); line != "" {
			text.WriteString(line)
			text.WriteString("\n")
		}
		para.Reset()
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := token.(type) {
		case xml.CharData:
			para.Write(t)
		case xml.StartElement:
			// Tabs and explicit breaks separate words inside a paragraph.
			if t.Name.Local == "tab" || t.Name.Local == "br" || t.Name.Local == "s" {
				para.WriteByte(' ')
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "h" {
				flush()
			}
		}
	}
	flush()

	return text.String()
}

// cleanText collapses whitespace and drops non-printable characters.
func cleanText(s string) string {
	var result strings.Builder
	lastSpace := false

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				result.WriteRune(' ')
				lastSpace = true
			}
		} else if unicode.IsPrint(r) {
			result.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}
