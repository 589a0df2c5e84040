package xlsx

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"
)

// FileFormatDescriptions provides descriptions of the file types that can
// be inspected.
var FileFormatDescriptions = map[string]string{
	"xlsx": "Excel xlsx file",
	"xlsb": "Excel 2007 xlsb file",
	"xls":  "Excel xls file",
	"ods":  "Openoffice.org ODS file",
	"zip":  "Unknown ZIP file",
	"":     "Unknown file type",
}

// ole2Signature is the magic cookie of an OLE2 compound document (legacy
// binary workbooks).
var ole2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// zipSignature is the magic cookie for ZIP files.
var zipSignature = []byte("PK\x03\x04")

const peekSize = 8

// DetectFormat inspects the content at the supplied path, or the bytes
// provided, and returns the file's type as a string, or empty string if
// it cannot be determined. The return value can always be looked up in
// FileFormatDescriptions for a human-readable description.
func DetectFormat(path string, content []byte) (string, error) {
	peek, err := peekBytes(path, content)
	if err != nil {
		return "", err
	}
	if len(peek) < len(zipSignature) {
		return "", nil
	}

	if bytes.HasPrefix(peek, ole2Signature) {
		return "xls", nil
	}
	if !bytes.HasPrefix(peek, zipSignature) {
		return "", nil
	}

	var zr *zip.Reader
	if content != nil {
		zr, err = zip.NewReader(bytes.NewReader(content), int64(len(content)))
	} else {
		var rc *zip.ReadCloser
		rc, err = zip.OpenReader(path)
		if err == nil {
			defer rc.Close()
			zr = &rc.Reader
		}
	}
	if err != nil {
		return "zip", nil
	}

	// Workaround for third-party files using backslashes or lowercase
	// names: map the lowercase normalized name to presence.
	members := make(map[string]bool, len(zr.File))
	for _, zf := range zr.File {
		members[strings.ToLower(normalizeEntryName(zf.Name))] = true
	}
	switch {
	case members["xl/workbook.xml"]:
		return "xlsx", nil
	case members["xl/workbook.bin"]:
		return "xlsb", nil
	case members["content.xml"]:
		return "ods", nil
	default:
		return "zip", nil
	}
}

func peekBytes(path string, content []byte) ([]byte, error) {
	if content != nil {
		if len(content) < peekSize {
			return content, nil
		}
		return content[:peekSize], nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewOpenError(path, ErrNotFound, "no such file")
		}
		return nil, NewOpenError(path, err, "cannot open file")
	}
	defer f.Close()
	peek := make([]byte, peekSize)
	n, err := f.Read(peek)
	if err != nil && err != io.EOF {
		return nil, NewOpenError(path, err, "cannot read file")
	}
	return peek[:n], nil
}
