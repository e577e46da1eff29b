package audio

// Format is the closed set of PCM formats the pipeline understands,
// mirroring OpenAL's small buffer format enum.
type Format int

const (
	FormatNone Format = iota
	FormatMono8
	FormatMono16
	FormatStereo8
	FormatStereo16
)

// FrameByteLength returns the byte length of one multi-channel sample
// ("frame") for the given format: 1/2/2/4 for Mono8/Mono16/Stereo8/Stereo16.
func (f Format) FrameByteLength() uint32 {
	switch f {
	case FormatMono8:
		return 1
	case FormatMono16:
		return 2
	case FormatStereo8:
		return 2
	case FormatStereo16:
		return 4
	default:
		return 0
	}
}

// FrameDatumLength returns the number of scalar samples ("datums") per
// frame: 1/1/2/2 for Mono8/Mono16/Stereo8/Stereo16.
func (f Format) FrameDatumLength() uint32 {
	switch f {
	case FormatMono8:
		return 1
	case FormatMono16:
		return 1
	case FormatStereo8:
		return 2
	case FormatStereo16:
		return 2
	default:
		return 0
	}
}

// Playable reports whether the format can actually be queued.
func (f Format) Playable() bool {
	return f != FormatNone
}

func (f Format) String() string {
	switch f {
	case FormatMono8:
		return "Mono8"
	case FormatMono16:
		return "Mono16"
	case FormatStereo8:
		return "Stereo8"
	case FormatStereo16:
		return "Stereo16"
	default:
		return "None"
	}
}
