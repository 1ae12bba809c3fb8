package delta

// Format identifies the layout of a stored base backup. Only delta formats
// carry a manifest whose contents can be reused for deduplication; anything
// unrecognised is FormatUnknown and is skipped, not an error.
type Format int

const (
	FormatUnknown Format = iota
	FormatV1
	FormatV2
	FormatDeltaV1
	FormatDeltaV2
)

var formatTags = map[Format]string{
	FormatV1:      "v1",
	FormatV2:      "v2",
	FormatDeltaV1: "delta_v1",
	FormatDeltaV2: "delta_v2",
}

func ParseFormat(tag string) Format {
	for format, t := range formatTags {
		if t == tag {
			return format
		}
	}
	return FormatUnknown
}

func (f Format) String() string {
	if tag, ok := formatTags[f]; ok {
		return tag
	}
	return "unknown"
}

func (f Format) IsDelta() bool {
	return f == FormatDeltaV1 || f == FormatDeltaV2
}
