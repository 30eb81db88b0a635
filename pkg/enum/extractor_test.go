package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>You always </w:t></w:r><w:r><w:t>forget.</w:t></w:r></w:p>
<w:p><w:r><w:t>It's all</w:t><w:tab/><w:t>your fault.</w:t></w:r></w:p>
<w:p></w:p>
</w:body>
</w:document>`

const odtBody = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:text>
<text:h>Notes</text:h>
<text:p>calm<text:s/>down</text:p>
</office:text></office:body>
</office:document-content>`

func TestExtractText_DOCX(t *testing.T) {
	out, err := ExtractText("letter.docx", buildZip(t, "word/document.xml", docxBody))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "word/document.xml", out[0].Name)
	assert.Equal(t, "You always forget.\nIt's all your fault.\n", string(out[0].Content))
}

func TestExtractText_ODT(t *testing.T) {
	out, err := ExtractText("notes.ODT", buildZip(t, "content.xml", odtBody))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Notes\ncalm down\n", string(out[0].Content))
}

func TestExtractText_MissingMember(t *testing.T) {
	_, err := ExtractText("letter.docx", buildZip(t, "other.xml", docxBody))
	assert.Error(t, err)
}

func TestExtractText_EML(t *testing.T) {
	msg := "From: a@example.com\r\n" +
		"Subject: =?UTF-8?Q?caf=C3=A9?=\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"You're overreacting=2E\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>ignored</p>\r\n" +
		"--XYZ--\r\n"

	out, err := ExtractText("mail.eml", []byte(msg))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "body", out[0].Name)
	assert.Equal(t, "café\n\nYou're overreacting.", string(out[0].Content))
}

func TestExtractText_Unsupported(t *testing.T) {
	_, err := ExtractText("sheet.xlsx", nil)
	assert.Error(t, err)
	assert.False(t, Extractable("xlsx"))
	assert.True(t, Extractable("PDF"))
}

func TestExtractText_InvalidPDF(t *testing.T) {
	_, err := ExtractText("broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestShouldExtract(t *testing.T) {
	assert.False(t, shouldExtract(Config{}, "docx"))
	assert.True(t, shouldExtract(Config{ExtractDocuments: "all"}, "pdf"))
	assert.True(t, shouldExtract(Config{ExtractDocuments: "docx, eml"}, "eml"))
	assert.False(t, shouldExtract(Config{ExtractDocuments: "docx"}, "pdf"))
	assert.False(t, shouldExtract(Config{ExtractDocuments: "all"}, "zip"))
}
