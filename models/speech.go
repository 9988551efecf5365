package models

// Audio formats accepted by the synthesis endpoint.
const (
	AudioFormatMP3 = "mp3"
	AudioFormatWAV = "wav"
	AudioFormatPCM = "pcm"
)

type SpeechRequest struct {
	Text   string `json:"text" validate:"required,min=1,max=4096"`
	Voice  string `json:"voice,omitempty" validate:"omitempty,max=32"`
	Format string `json:"format,omitempty" validate:"omitempty,oneof=mp3 wav pcm"`
}

// ContentType maps a requested format to the response media type. mp3 is
// the default when no format is requested.
func (r *SpeechRequest) ContentType() string {
	switch r.Format {
	case AudioFormatWAV:
		return "audio/wav"
	case AudioFormatPCM:
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}

type TranscriptionResponse struct {
	Text string `json:"text"`
}
