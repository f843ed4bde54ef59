package validation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	doc   string
	err   error
	input []byte
}

func (s *stubValidator) Run(_ context.Context, input []byte) (json.RawMessage, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.doc), nil
}

type memArchive struct {
	docs map[string][]byte
	err  error
}

func (m *memArchive) Archive(_ context.Context, cid string, doc []byte) error {
	if m.err != nil {
		return m.err
	}
	if m.docs == nil {
		m.docs = map[string][]byte{}
	}
	m.docs[cid] = doc
	return nil
}

func TestService_AnswerIsUnwrapped(t *testing.T) {
	svc := NewService(&stubValidator{doc: `{"answer":"ok"}`}, nil)
	res, err := svc.Validate(context.Background(), []byte(`{"droneName":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(res.Value))
}

func TestService_CompletesComplianceResult(t *testing.T) {
	v := &stubValidator{doc: `{"complianceMessages":["Stay below 120m"]}`}
	archive := &memArchive{}
	svc := NewService(v, archive)

	res, err := svc.Validate(context.Background(), []byte(`{"weight": 900, "droneName":"Mavic"}`))
	require.NoError(t, err)

	var out struct {
		ComplianceMessages []string `json:"complianceMessages"`
		DataHash           string   `json:"dataHash"`
		IpfsCid            string   `json:"ipfsCid"`
	}
	require.NoError(t, json.Unmarshal(res.Value, &out))
	assert.Equal(t, []string{"Stay below 120m"}, out.ComplianceMessages)
	assert.Equal(t, res.DataHash.Hex(), out.DataHash)
	assert.Equal(t, res.CID, out.IpfsCid)

	// the validator and the archive see the canonical document
	assert.Equal(t, `{"droneName":"Mavic","weight":900}`, string(v.input))
	assert.Equal(t, v.input, archive.docs[res.CID])
}

func TestService_KeepsValidatorHashes(t *testing.T) {
	svc := NewService(&stubValidator{doc: `{"complianceMessages":[],"dataHash":"0x01","ipfsCid":"bafy"}`}, nil)
	res, err := svc.Validate(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"complianceMessages":[],"dataHash":"0x01","ipfsCid":"bafy"}`, string(res.Value))
}

func TestService_ReportedError(t *testing.T) {
	svc := NewService(&stubValidator{doc: `{"error":"Invalid response from validation agent."}`}, nil)
	_, err := svc.Validate(context.Background(), []byte(`{"droneName":"x"}`))

	var reported *ReportedError
	require.True(t, errors.As(err, &reported))
	assert.Equal(t, "Invalid response from validation agent.", reported.Message)
}

func TestService_RejectsNonObjectInput(t *testing.T) {
	svc := NewService(&stubValidator{doc: `{}`}, nil)
	for _, body := range []string{``, `[]`, `"x"`, `42`, `{"broken":`} {
		_, err := svc.Validate(context.Background(), []byte(body))
		assert.ErrorIs(t, err, ErrInvalidInput, "body %q", body)
	}
}

func TestService_ArchiveFailureIsNotFatal(t *testing.T) {
	svc := NewService(&stubValidator{doc: `"fine"`}, &memArchive{err: errors.New("bucket missing")})
	res, err := svc.Validate(context.Background(), []byte(`{"droneName":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, `"fine"`, string(res.Value))
}

func TestService_EndToEndWithProcess(t *testing.T) {
	svc := NewService(helperRunner("compliance", 10*time.Second), nil)
	res, err := svc.Validate(context.Background(), []byte(`{"droneName":"x"}`))
	require.NoError(t, err)
	assert.Contains(t, string(res.Value), "Altitude within 120m limit")
	assert.Contains(t, string(res.Value), res.CID)
}

func TestService_RejectsTrailingData(t *testing.T) {
	v := &stubValidator{doc: `{"answer":"ok"}`}
	svc := NewService(v, nil)
	for _, body := range []string{
		`{"droneName":"x"} not json at all`,
		`{"droneName":"x"}{"droneName":"y"}`,
		`{"droneName":"x"} 42`,
	} {
		_, err := svc.Validate(context.Background(), []byte(body))
		assert.ErrorIs(t, err, ErrInvalidInput, "body %q", body)
	}
	assert.Nil(t, v.input, "validator must not run for malformed bodies")
}

func TestService_ArchivesOnlyAcceptedDocuments(t *testing.T) {
	cases := []struct {
		name      string
		validator *stubValidator
		archived  bool
	}{
		{"accepted", &stubValidator{doc: `{"complianceMessages":[]}`}, true},
		{"reported error", &stubValidator{doc: `{"error":"Restricted airspace"}`}, false},
		{"process failure", &stubValidator{err: &ProcessError{ExitCode: 1}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			archive := &memArchive{}
			res, _ := NewService(tc.validator, archive).Validate(context.Background(), []byte(`{"droneName":"x"}`))
			assert.Equal(t, tc.archived, len(archive.docs) == 1)
			if tc.archived {
				require.NotNil(t, res)
				assert.Contains(t, archive.docs, res.CID)
			}
		})
	}
}
