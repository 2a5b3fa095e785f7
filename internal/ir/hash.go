package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed hashes.
// The version suffix allows a future algorithm migration.
const (
	DomainContent  = "snc/content/v1"
	DomainName     = "snc/name/v1"
	DomainDocument = "snc/document/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the hash of a token's content. Equal content always
// yields an equal hash; the content is NFC normalised first so that
// visually identical text hashes the same.
func ContentHash(content string) string {
	return hashWithDomain(DomainContent, []byte(norm.NFC.String(content)))
}

// DocumentHash returns the hash of a whole document body.
func DocumentHash(text string) string {
	return hashWithDomain(DomainDocument, []byte(norm.NFC.String(text)))
}

// FallbackName derives a deterministic name for an unnamed unit from its
// kind and content: the kind's prefix, "_", then 8 hex characters.
func FallbackName(kind Kind, content string) string {
	h := hashWithDomain(DomainName, []byte(norm.NFC.String(content)))
	return fmt.Sprintf("%s_%s", kind.Prefix(), h[:8])
}

// Digest returns a domain-separated hash of v's canonical JSON form.
func Digest(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}
