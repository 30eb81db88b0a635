package types

import (
	"crypto/sha1"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DocumentID is a SHA-1 content hash (20 bytes) identifying an analyzed document.
type DocumentID [20]byte

// ComputeDocumentID computes SHA-1("doc {len}\0{content}").
func ComputeDocumentID(content []byte) DocumentID {
	header := fmt.Sprintf("doc %d\x00", len(content))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(content)

	var id DocumentID
	copy(id[:], h.Sum(nil))
	return id
}

// Hex returns 40-character hex string.
func (id DocumentID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements Stringer (returns Hex()).
func (id DocumentID) String() string {
	return id.Hex()
}

// ParseDocumentID parses 40-char hex string to DocumentID.
func ParseDocumentID(hexStr string) (DocumentID, error) {
	if len(hexStr) != 40 {
		return DocumentID{}, fmt.Errorf("invalid document ID length: expected 40, got %d", len(hexStr))
	}

	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return DocumentID{}, fmt.Errorf("invalid hex string: %w", err)
	}

	var id DocumentID
	copy(id[:], decoded)
	return id, nil
}

// MarshalJSON implements json.Marshaler.
func (id DocumentID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Hex())
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *DocumentID) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}

	parsed, err := ParseDocumentID(hexStr)
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}

// Value implements driver.Valuer for SQL serialization.
func (id DocumentID) Value() (driver.Value, error) {
	return id.Hex(), nil
}

// Scan implements sql.Scanner for SQL deserialization.
func (id *DocumentID) Scan(value interface{}) error {
	if value == nil {
		return fmt.Errorf("cannot scan nil into DocumentID")
	}

	var hexStr string
	switch v := value.(type) {
	case string:
		hexStr = v
	case []byte:
		hexStr = string(v)
	default:
		return fmt.Errorf("cannot scan type %T into DocumentID", value)
	}

	parsed, err := ParseDocumentID(hexStr)
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}
