// Package badge issues and parses the QR identifiers teachers present at the station.
package badge

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
)

// PayloadPrefix is the fixed scheme of every badge payload.
const PayloadPrefix = "TEACHER:"

const (
	uniqueIDLength = 8
	defaultSize    = 256
)

var payloadPattern = regexp.MustCompile(`^TEACHER:([A-Za-z0-9]+)$`)

// Payload renders the string encoded into the QR image.
func Payload(uniqueID string) string {
	return PayloadPrefix + uniqueID
}

// ParsePayload extracts the unique id from a scanned string. Surrounding
// whitespace from scanner input is ignored; anything else must match exactly.
func ParsePayload(raw string) (string, error) {
	match := payloadPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return "", appErrors.ErrInvalidScanPayload
	}
	return match[1], nil
}

// NewUniqueID returns an 8 character alphanumeric token.
func NewUniqueID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:uniqueIDLength]
}

// FileName is the storage name of a teacher's QR image.
func FileName(uniqueID string) string {
	return fmt.Sprintf("teacher_%s.png", uniqueID)
}

// Store persists rendered images.
type Store interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	Exists(name string) bool
	Delete(name string) error
}

// Badge is a rendered QR identifier.
type Badge struct {
	UniqueID string `json:"unique_id"`
	Payload  string `json:"payload"`
	FileName string `json:"file_name"`
	DataURL  string `json:"data_url"`
	PNG      []byte `json:"-"`
}

// Issuer renders QR badges and keeps a copy in storage.
type Issuer struct {
	store Store
	size  int
}

// NewIssuer builds an issuer writing to store.
func NewIssuer(store Store) *Issuer {
	return &Issuer{store: store, size: defaultSize}
}

// Issue renders the badge for uniqueID and stores the PNG.
func (i *Issuer) Issue(uniqueID string) (*Badge, error) {
	if uniqueID == "" {
		return nil, fmt.Errorf("unique id required")
	}
	png, err := qrcode.Encode(Payload(uniqueID), qrcode.Medium, i.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	name := FileName(uniqueID)
	if i.store != nil {
		if _, err := i.store.Save(name, png); err != nil {
			return nil, err
		}
	}
	return newBadge(uniqueID, png), nil
}

// Load returns the stored badge, re-rendering it when the file is gone.
func (i *Issuer) Load(uniqueID string) (*Badge, error) {
	if i.store == nil || !i.store.Exists(FileName(uniqueID)) {
		return i.Issue(uniqueID)
	}
	png, err := i.store.Read(FileName(uniqueID))
	if err != nil {
		return nil, err
	}
	return newBadge(uniqueID, png), nil
}

// Remove deletes the stored image.
func (i *Issuer) Remove(uniqueID string) error {
	if i.store == nil {
		return nil
	}
	return i.store.Delete(FileName(uniqueID))
}

func newBadge(uniqueID string, png []byte) *Badge {
	return &Badge{
		UniqueID: uniqueID,
		Payload:  Payload(uniqueID),
		FileName: FileName(uniqueID),
		DataURL:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		PNG:      png,
	}
}
