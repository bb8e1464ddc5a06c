package catalogapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	signingAlgorithm   = "CATALOG4-HMAC-SHA256"
	signingTerminator  = "request"
	dateStampLayout    = "20060102"
	requestDateLayout  = "20060102T150405Z"
	headerDate         = "x-date"
	headerHost         = "host"
	headerTarget       = "x-target"
)

// Errors for signer construction
var (
	ErrSignerMissingAccessKey = errors.New("catalogapi: signer access key is required")
	ErrSignerMissingSecretKey = errors.New("catalogapi: signer secret key is required")
	ErrSignerMissingHost      = errors.New("catalogapi: signer host is required")
)

// SignedRequest is the time-bound request envelope produced by the signer
type SignedRequest struct {
	Authorization string
	Date          string
	Target        string
}

// Signer produces signed request envelopes for the Catalog API using a
// canonical-request + chained HMAC-SHA256 key ladder, binding each request
// to its timestamp and to the configured region/service scope.
//
// Sign is a pure function of its inputs and the long-lived key material
// supplied at construction: identical inputs always yield the identical
// signature.
type Signer struct {
	accessKey string
	secretKey string
	host      string
	region    string
	service   string
}

// NewSigner creates a signer for the given credential and scope
func NewSigner(accessKey, secretKey, host, region, service string) (*Signer, error) {
	if accessKey == "" {
		return nil, ErrSignerMissingAccessKey
	}
	if secretKey == "" {
		return nil, ErrSignerMissingSecretKey
	}
	if host == "" {
		return nil, ErrSignerMissingHost
	}
	if region == "" {
		region = "us-east-1"
	}
	if service == "" {
		service = "ProductCatalog"
	}
	return &Signer{
		accessKey: accessKey,
		secretKey: secretKey,
		host:      host,
		region:    region,
		service:   service,
	}, nil
}

// Sign builds the signed envelope for one POST request
func (s *Signer) Sign(operation, canonicalPath string, body []byte, timestamp time.Time) SignedRequest {
	ts := timestamp.UTC()
	requestDate := ts.Format(requestDateLayout)
	dateStamp := ts.Format(dateStampLayout)
	target := s.service + "." + operation

	canonicalHeaders := fmt.Sprintf("%s:%s\n%s:%s\n%s:%s\n",
		headerHost, s.host,
		headerDate, requestDate,
		headerTarget, target,
	)
	signedHeaders := strings.Join([]string{headerHost, headerDate, headerTarget}, ";")

	bodyHash := sha256.Sum256(body)
	canonicalRequest := strings.Join([]string{
		"POST",
		canonicalPath,
		"", // query string: the API is POST-only
		canonicalHeaders,
		signedHeaders,
		hex.EncodeToString(bodyHash[:]),
	}, "\n")

	scope := strings.Join([]string{dateStamp, s.region, s.service, signingTerminator}, "/")
	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		requestDate,
		scope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	signature := hex.EncodeToString(hmacSHA256(s.signingKey(dateStamp), []byte(stringToSign)))

	return SignedRequest{
		Authorization: fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			signingAlgorithm, s.accessKey, scope, signedHeaders, signature),
		Date:   requestDate,
		Target: target,
	}
}

// signingKey derives the per-day signing key through the HMAC key ladder
// date -> region -> service -> terminator
func (s *Signer) signingKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("CATALOG4"+s.secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(s.region))
	kService := hmacSHA256(kRegion, []byte(s.service))
	return hmacSHA256(kService, []byte(signingTerminator))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
