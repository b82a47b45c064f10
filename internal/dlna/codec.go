package dlna

import "strings"

// SplitCodec pulls a "-p<PROFILE>-l<LEVEL>" suffix off a codec identifier,
// per spec.md §4.4: "The codec string may embed profile and level separated
// by tags -p<PROFILE>-l<LEVEL>; the engine splits these out of the codec
// identifier before matching."
func SplitCodec(codec string) (base, profile, level string) {
	i := strings.LastIndex(codec, "-p")
	if i < 0 {
		return codec, "", ""
	}
	base, profile = codec[:i], codec[i+2:]
	if j := strings.Index(profile, "-l"); j >= 0 {
		profile, level = profile[:j], profile[j+2:]
	}
	return base, profile, level
}
