package veo

import (
	"encoding/json"
	"errors"
)

// ErrNoOutput is returned when a completed operation carries none of the
// known video output fields.
var ErrNoOutput = errors.New("veo: completed operation has no video output")

// videoOutput is the logical video reference carried by a successful
// operation, regardless of which field path it arrived under.
type videoOutput struct {
	URI    string
	Base64 string
}

func (v videoOutput) empty() bool {
	return v.URI == "" && v.Base64 == ""
}

// videoRef is the innermost video object shared by all response shapes.
type videoRef struct {
	URI                string `json:"uri,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
}

func (r videoRef) output() videoOutput {
	return videoOutput{URI: r.URI, Base64: r.BytesBase64Encoded}
}

// extractFunc probes one known response shape and reports whether it matched.
type extractFunc func(raw json.RawMessage) (videoOutput, bool)

// outputExtractors is the ordered list of known field paths for the video
// output. The SDK-style and raw-transport responses place it differently,
// and the path changed again between v1beta revisions; the first non-empty
// match wins.
var outputExtractors = []extractFunc{
	extractGenerateVideoResponse, // response.generateVideoResponse.generatedSamples[0].video
	extractGeneratedVideos,       // response.generatedVideos[0].video
	extractVideos,                // response.videos[0]
}

// extractOutput probes the known field paths in order and returns the first
// non-empty video output. Exhausting all paths on a completed operation is
// an explicit error, never a silent success.
func extractOutput(raw json.RawMessage) (videoOutput, error) {
	if len(raw) == 0 {
		return videoOutput{}, ErrNoOutput
	}
	for _, extract := range outputExtractors {
		if out, ok := extract(raw); ok {
			return out, nil
		}
	}
	return videoOutput{}, ErrNoOutput
}

func extractGenerateVideoResponse(raw json.RawMessage) (videoOutput, bool) {
	var body struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video videoRef `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return videoOutput{}, false
	}
	samples := body.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 || samples[0].Video.output().empty() {
		return videoOutput{}, false
	}
	return samples[0].Video.output(), true
}

func extractGeneratedVideos(raw json.RawMessage) (videoOutput, bool) {
	var body struct {
		GeneratedVideos []struct {
			Video videoRef `json:"video"`
		} `json:"generatedVideos"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return videoOutput{}, false
	}
	if len(body.GeneratedVideos) == 0 || body.GeneratedVideos[0].Video.output().empty() {
		return videoOutput{}, false
	}
	return body.GeneratedVideos[0].Video.output(), true
}

func extractVideos(raw json.RawMessage) (videoOutput, bool) {
	var body struct {
		Videos []videoRef `json:"videos"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return videoOutput{}, false
	}
	if len(body.Videos) == 0 || body.Videos[0].output().empty() {
		return videoOutput{}, false
	}
	return body.Videos[0].output(), true
}
