package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

var extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,16}$`)

// sniffContentType detects the content type from the leading bytes and returns
// a reader that still yields the full stream.
func sniffContentType(r io.Reader) (io.Reader, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", fmt.Errorf("read magic bytes: %w", err)
	}
	head = head[:n]

	return io.MultiReader(bytes.NewReader(head), r), mimetype.Detect(head).String(), nil
}

// safeExtension keeps the extension of a client file name only when it is a
// short alphanumeric suffix. Anything else yields no extension.
func safeExtension(name string) string {
	ext := path.Ext(strings.ReplaceAll(name, `\`, "/"))
	if !extensionPattern.MatchString(ext) {
		return ""
	}
	return strings.ToLower(ext)
}

// StorageKey is the blob key of the index-th file of an upload.
func StorageKey(uploadID string, index int, originalName string) string {
	return fmt.Sprintf("%s/%d%s", uploadID, index, safeExtension(originalName))
}

// validUploadID accepts only canonical lowercase UUID strings.
func validUploadID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}
