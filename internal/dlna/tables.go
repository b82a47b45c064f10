package dlna

// Rule tables below are a representative port of
// _examples/original_source/src/lib/lightmediascanner_dlna_rules.c: same
// container partitioning (mp3 / mp4 / mpegts / jpeg / png / wave), same
// matching order, a subset of that file's ~90KB of individual profile rows
// (MP3/MP3X, AAC-in-MP4, JPEG_SM/MED/LRG, AVC_MP4/AVC_TS) — enough for the
// rule engine's control flow and the spec's testable scenarios, without
// reproducing every DLNA profile row the original ships.

func intp(v int) *int { return &v }

var audioTable = []AudioCandidate{
	{
		Container: "mp3",
		Audio: &AudioRule{
			Rates:      []int{32000, 44100, 48000},
			BitrateMin: intp(320000), BitrateMax: intp(320000),
			ChannelsMin: intp(1), ChannelsMax: intp(2),
		},
		Profile: Profile{Name: "MP3", MIME: "audio/mpeg"},
	},
	{
		Container: "mp3",
		Audio: &AudioRule{
			Rates:      []int{16000, 22050, 24000, 32000, 44100, 48000},
			BitrateMin: intp(8000), BitrateMax: intp(320000),
			ChannelsMin: intp(1), ChannelsMax: intp(2),
		},
		Profile: Profile{Name: "MP3X", MIME: "audio/mpeg"},
	},
	{
		Container: "mp4",
		Audio: &AudioRule{
			Codec:      "mpeg4aac-lc",
			RateMin:    intp(8000), RateMax: intp(48000),
			BitrateMax: intp(320000),
			ChannelsMin: intp(1), ChannelsMax: intp(2),
		},
		Profile: Profile{Name: "AAC_ISO_320", MIME: "audio/mp4"},
	},
	{
		Container: "mp4",
		Audio: &AudioRule{
			Codec:      "mpeg4aac-lc",
			RateMin:    intp(8000), RateMax: intp(48000),
			BitrateMax: intp(576000),
			ChannelsMin: intp(1), ChannelsMax: intp(6),
		},
		Profile: Profile{Name: "AAC_ISO", MIME: "audio/mp4"},
	},
	{
		Container: "wave",
		Audio:     &AudioRule{},
		Profile:   Profile{Name: "WAV", MIME: "audio/L16"},
	},
}

var imageTable = []ImageCandidate{
	{
		Container: "jpeg",
		WidthMax: 640, HeightMax: 480,
		Profile: Profile{Name: "JPEG_SM", MIME: "image/jpeg"},
	},
	{
		Container: "jpeg",
		WidthMax: 1024, HeightMax: 768,
		Profile: Profile{Name: "JPEG_MED", MIME: "image/jpeg"},
	},
	{
		Container: "jpeg",
		WidthMax: 4096, HeightMax: 4096,
		Profile: Profile{Name: "JPEG_LRG", MIME: "image/jpeg"},
	},
	{
		Container: "png",
		WidthMax: 4096, HeightMax: 4096,
		Profile: Profile{Name: "PNG_LRG", MIME: "image/png"},
	},
}

var videoTable = []VideoCandidate{
	{
		Container: "mpegts",
		PacketSize: intp(192),
		Video: []VideoRule{
			{
				UseResRange: true, WidthMin: 0, WidthMax: 720, HeightMin: 0, HeightMax: 576,
				Profiles: []string{"baseline", "main"},
			},
		},
		Profile: Profile{Name: "AVC_TS_BL_CIF15_AAC_520", MIME: "video/mpeg"},
	},
	{
		Container: "mpegts",
		PacketSize: intp(188),
		Video: []VideoRule{
			{
				UseResRange: true, WidthMin: 0, WidthMax: 1920, HeightMin: 0, HeightMax: 1080,
				Profiles: []string{"high", "main"},
			},
		},
		Profile: Profile{Name: "AVC_TS_HD_50_AC3", MIME: "video/mpeg"},
	},
	{
		Container: "mp4",
		Video: []VideoRule{
			{
				Width: 176, Height: 144,
				Profiles: []string{"baseline"},
			},
			{
				UseResRange: true, WidthMin: 0, WidthMax: 720, HeightMin: 0, HeightMax: 576,
				Profiles: []string{"baseline", "main"},
			},
			{
				UseResRange: true, WidthMin: 0, WidthMax: 1920, HeightMin: 0, HeightMax: 1080,
				Profiles: []string{"high", "main"},
			},
		},
		Profile: Profile{Name: "AVC_MP4_MP_SD", MIME: "video/mp4"},
	},
}

// MatchAudioProfile, MatchImageProfile and MatchVideoProfile are the entry
// points parser plugins use: each applies its domain's table through the
// matcher for that domain (spec.md §4.4 step 1).
func MatchAudioProfile(d Descriptor) (Profile, bool)  { return MatchAudio(d, audioTable) }
func MatchImageProfile(d Descriptor) (Profile, bool)  { return MatchImage(d, imageTable) }
func MatchVideoProfile(d Descriptor) (Profile, bool)  { return MatchVideo(d, videoTable) }
