package veo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutcomeKind classifies an operation's state.
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeArtifact
	OutcomeFiltered
	OutcomeFailed
	OutcomeEmpty
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeArtifact:
		return "artifact"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeFailed:
		return "failed"
	case OutcomeEmpty:
		return "empty"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the decoded terminal (or pending) state of an operation. Only
// the fields relevant to Kind are populated.
type Outcome struct {
	Kind OutcomeKind

	// OutcomeArtifact: exactly one of Inline (still base64) or URI is set.
	Inline   string
	URI      string
	MIMEType string

	// OutcomeFiltered.
	FilteredCount   int
	FilteredReasons []string

	// OutcomeFailed.
	ErrorCode    int
	ErrorMessage string
}

// Operation is a remote job handle. Each poll replaces it wholesale.
type Operation struct {
	Name    string
	Model   string
	Done    bool
	Outcome Outcome
}

// Artifact is a produced video: inline bytes or a storage reference.
type Artifact struct {
	Data     []byte
	URI      string
	MIMEType string
}

// Inline reports whether the artifact carries its bytes.
func (a Artifact) Inline() bool { return len(a.Data) > 0 }

// Reference reports whether the artifact lives in remote storage.
func (a Artifact) Reference() bool { return len(a.Data) == 0 && a.URI != "" }

type operationWire struct {
	Name     string        `json:"name"`
	Done     bool          `json:"done"`
	Response *responseWire `json:"response,omitempty"`
	Error    *errorWire    `json:"error,omitempty"`
}

type responseWire struct {
	Videos                  []videoWire `json:"videos"`
	RAIMediaFilteredCount   int         `json:"raiMediaFilteredCount"`
	RAIMediaFilteredReasons []string    `json:"raiMediaFilteredReasons"`
}

type videoWire struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	GCSURI             string `json:"gcsUri"`
	MIMEType           string `json:"mimeType"`
}

type errorWire struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func decodeOperation(data []byte, model string) (Operation, error) {
	var wire operationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Operation{}, fmt.Errorf("decode operation: %w", err)
	}
	op := Operation{Name: wire.Name, Model: model, Done: wire.Done}
	op.Outcome = classify(wire)
	if op.Outcome.Kind == OutcomeFailed {
		op.Done = true
	}
	return op, nil
}

func classify(wire operationWire) Outcome {
	if wire.Error != nil {
		message := strings.TrimSpace(wire.Error.Message)
		if message == "" {
			message = wire.Error.Status
		}
		return Outcome{Kind: OutcomeFailed, ErrorCode: wire.Error.Code, ErrorMessage: message}
	}
	if !wire.Done {
		return Outcome{Kind: OutcomePending}
	}
	resp := wire.Response
	if resp == nil {
		return Outcome{Kind: OutcomeEmpty}
	}

	var usable *videoWire
	for i := range resp.Videos {
		if resp.Videos[i].BytesBase64Encoded != "" || resp.Videos[i].GCSURI != "" {
			usable = &resp.Videos[i]
			break
		}
	}
	if resp.RAIMediaFilteredCount > 0 && usable == nil {
		return Outcome{
			Kind:            OutcomeFiltered,
			FilteredCount:   resp.RAIMediaFilteredCount,
			FilteredReasons: resp.RAIMediaFilteredReasons,
		}
	}
	if usable == nil {
		return Outcome{Kind: OutcomeEmpty}
	}
	mime := usable.MIMEType
	if mime == "" {
		mime = "video/mp4"
	}
	if usable.BytesBase64Encoded != "" {
		return Outcome{Kind: OutcomeArtifact, Inline: usable.BytesBase64Encoded, MIMEType: mime}
	}
	return Outcome{Kind: OutcomeArtifact, URI: usable.GCSURI, MIMEType: mime}
}
