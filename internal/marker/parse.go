package marker

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/Heavybullets8/TT-Migration/pkg/errclass"
	"github.com/Heavybullets8/TT-Migration/pkg/model"
)

// Sections is a marker body split into its three parts, byte-for-byte.
type Sections struct {
	Commitment model.HashValue
	Payload    []byte
	Token      string
}

// Split breaks a marker body into its sections without interpreting them.
func Split(body []byte) (*Sections, error) {
	trimmed := bytes.TrimSuffix(body, []byte("\n"))
	parts := bytes.Split(trimmed, []byte(model.MarkerSeparator))
	if len(parts) != 3 {
		return nil, errclass.ErrMarkerCorrupt.WithMessagef("expected 3 sections, found %d", len(parts))
	}

	commitment := string(parts[0])
	if len(commitment) != 64 {
		return nil, errclass.ErrMarkerCorrupt.WithMessagef("commitment has length %d", len(commitment))
	}
	if _, err := hex.DecodeString(commitment); err != nil {
		return nil, errclass.ErrMarkerCorrupt.WithMessage("commitment is not hex")
	}
	token := string(parts[2])
	if token == "" || strings.ContainsAny(token, " \t\r\n") {
		return nil, errclass.ErrMarkerCorrupt.WithMessage("malformed entropy token")
	}

	return &Sections{
		Commitment: model.HashValue(commitment),
		Payload:    parts[1],
		Token:      token,
	}, nil
}

// Parse decodes a marker file. It does not check the commitment; see
// internal/verify for that.
func Parse(name string, body []byte) (*model.MarkerRecord, error) {
	sec, err := Split(body)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(sec.Payload))
	dec.DisallowUnknownFields()
	var payload model.MarkerPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, errclass.ErrMarkerCorrupt.Wrap(err, "decode payload")
	}

	ts, err := time.Parse(TimestampLayout, payload.Timestamp)
	if err != nil {
		return nil, errclass.ErrMarkerCorrupt.Wrap(err, "parse timestamp")
	}

	return &model.MarkerRecord{
		Name:       name,
		Commitment: sec.Commitment,
		Timestamp:  ts,
		Actor:      payload.Actor,
		Context:    payload.Context,
		Entropy:    sec.Token,
		Body:       body,
	}, nil
}
