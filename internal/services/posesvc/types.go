package posesvc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cloudpose/internal/imagefile"
)

// Operation names one of the two remote endpoints.
type Operation string

const (
	OpKeypoints Operation = "keypoints"
	OpAnnotated Operation = "annotated"
)

const (
	PathKeypoints = "/api/pose"
	PathAnnotated = "/api/pose/annotated"
)

// Path returns the endpoint path for the operation.
func (op Operation) Path() string {
	switch op {
	case OpAnnotated:
		return PathAnnotated
	default:
		return PathKeypoints
	}
}

// Operations lists every endpoint in a stable order.
func Operations() []Operation {
	return []Operation{OpKeypoints, OpAnnotated}
}

// Envelope is the JSON body posted to both endpoints.
type Envelope struct {
	ID       string `json:"id"`
	Image    string `json:"image"`
	FileName string `json:"file_name"`
}

// NewEnvelope builds a request envelope with a fresh random identifier. The
// image is the bare base64 payload.
func NewEnvelope(imageBase64, fileName string) Envelope {
	return Envelope{
		ID:       uuid.NewString(),
		Image:    imagefile.StripDataURL(imageBase64),
		FileName: fileName,
	}
}

// Box is a person bounding box as reported by the service.
type Box struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Probability float64 `json:"probability"`
}

// Keypoint holds x, y and confidence.
type Keypoint [3]float64

func (k Keypoint) X() float64          { return k[0] }
func (k Keypoint) Y() float64          { return k[1] }
func (k Keypoint) Confidence() float64 { return k[2] }

// PoseResult is the keypoints response. Raw keeps the body exactly as received
// and Fields holds every top-level key, including ones this client does not model.
type PoseResult struct {
	ID             string       `json:"id"`
	Count          int          `json:"count"`
	ProcessingTime string       `json:"processing_time"`
	FileName       string       `json:"file_name"`
	Boxes          []Box        `json:"boxes"`
	Keypoints      [][]Keypoint `json:"keypoints"`

	Raw    json.RawMessage `json:"-"`
	Fields map[string]any  `json:"-"`
}

// ProcessingDuration parses values such as "0.45s". It returns false when the
// service reported something else.
func (r *PoseResult) ProcessingDuration() (time.Duration, bool) {
	if r == nil {
		return 0, false
	}
	d, err := time.ParseDuration(strings.TrimSpace(r.ProcessingTime))
	if err != nil {
		return 0, false
	}
	return d, true
}

// Pretty returns the raw body indented for display.
func (r *PoseResult) Pretty() string {
	if r == nil || len(r.Raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", "  "); err != nil {
		return string(r.Raw)
	}
	return buf.String()
}

// AnnotatedResult is the annotated-image response. Image may be empty.
type AnnotatedResult struct {
	ID       string `json:"id"`
	Image    string `json:"image"`
	FileName string `json:"file_name"`
	Message  string `json:"message"`

	Raw json.RawMessage `json:"-"`
}

// HasImage reports whether the service returned image data.
func (r *AnnotatedResult) HasImage() bool {
	return r != nil && strings.TrimSpace(r.Image) != ""
}

// DataURL renders the returned image as a JPEG data URL.
func (r *AnnotatedResult) DataURL() string {
	if !r.HasImage() {
		return ""
	}
	return imagefile.DataURL("image/jpeg", imagefile.StripDataURL(strings.TrimSpace(r.Image)))
}

// ImageBytes decodes the returned JPEG.
func (r *AnnotatedResult) ImageBytes() ([]byte, error) {
	if !r.HasImage() {
		return nil, errors.New("annotated response carried no image")
	}
	return imagefile.DecodeDataURL(r.Image)
}

type errorBody struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	// Detail is the service's error text when the body carried one.
	Detail string
	Body   string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	if detail := strings.TrimSpace(e.Detail); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func newHTTPStatusError(status int, body []byte) *HTTPStatusError {
	statusErr := &HTTPStatusError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		statusErr.Detail = parsed.Error
	}
	return statusErr
}

func decodePoseResult(body []byte) (*PoseResult, error) {
	fields := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := &PoseResult{}
	if err := json.Unmarshal(body, result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	result.Raw = append(json.RawMessage(nil), body...)
	result.Fields = fields
	return result, nil
}

func decodeAnnotatedResult(body []byte) (*AnnotatedResult, error) {
	result := &AnnotatedResult{}
	if err := json.Unmarshal(body, result); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	result.Raw = append(json.RawMessage(nil), body...)
	return result, nil
}
