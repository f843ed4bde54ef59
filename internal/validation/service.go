// Package validation proxies flight details to an out-of-process compliance
// validator and relays its single JSON answer.
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drone-flight/registry/internal/logging"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidInput = errors.New("flight data must be a JSON object")

// ReportedError is an error the validator returned in its own document.
type ReportedError struct {
	Message string
}

func (e *ReportedError) Error() string {
	return "validator reported: " + e.Message
}

// Validator runs one validation round trip.
type Validator interface {
	Run(ctx context.Context, input []byte) (json.RawMessage, error)
}

// Archiver stores the canonical flight document under its content id.
type Archiver interface {
	Archive(ctx context.Context, cid string, doc []byte) error
}

type Result struct {
	Value    json.RawMessage
	DataHash common.Hash
	CID      string
	Duration time.Duration
}

type Service struct {
	validator Validator
	archiver  Archiver
}

// NewService creates the proxy service. archiver may be nil.
func NewService(validator Validator, archiver Archiver) *Service {
	return &Service{validator: validator, archiver: archiver}
}

// Validate sends flight to the validator and maps its document to a result.
func (s *Service) Validate(ctx context.Context, flight []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(flight)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidInput
	}
	canonical, err := Canonicalize(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	dataHash := DataHash(canonical)
	contentID, err := ContentID(canonical)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	doc, err := s.validator.Run(ctx, canonical)
	if err != nil {
		return nil, err
	}

	value, err := mapDocument(doc, dataHash, contentID)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	// only documents the validator accepted are archived
	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, contentID, canonical); err != nil {
			logging.Warn("Failed to archive flight details",
				"cid", contentID,
				"error", err.Error(),
			)
		}
	}

	return &Result{
		Value:    value,
		DataHash: dataHash,
		CID:      contentID,
		Duration: duration,
	}, nil
}

// mapDocument turns the validator's document into the relayed result:
// an "error" member fails, an "answer" member is unwrapped, other objects
// are completed with dataHash and ipfsCid.
func mapDocument(doc json.RawMessage, dataHash common.Hash, contentID string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err != nil || obj == nil {
		return doc, nil
	}

	if raw, ok := obj["error"]; ok && !bytes.Equal(raw, []byte("null")) {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			msg = string(raw)
		}
		return nil, &ReportedError{Message: msg}
	}

	if answer, ok := obj["answer"]; ok {
		return answer, nil
	}

	if _, ok := obj["dataHash"]; !ok {
		obj["dataHash"], _ = json.Marshal(dataHash.Hex())
	}
	if _, ok := obj["ipfsCid"]; !ok {
		obj["ipfsCid"], _ = json.Marshal(contentID)
	}
	if _, ok := obj["complianceMessages"]; !ok {
		obj["complianceMessages"] = json.RawMessage("[]")
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return out, nil
}
