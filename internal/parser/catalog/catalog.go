// Package catalog is the compiled-in plugin registry: the one place that
// imports every format plugin and resolves the config-level parser list
// (including its "all" special, spec.md §4.6) to a concrete
// parser.Registry. "all-category" is not recognised and is reported as an
// unknown parser. Kept separate from internal/parser itself so
// that package has no dependency on any individual format plugin.
package catalog

import (
	"fmt"

	"github.com/lms-scan/lms-scan/internal/parser"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/asf"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/flac"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/generic"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/id3"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/jpeg"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/m3u"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/mp4"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/ogg"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/pls"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/png"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/rm"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/wave"
)

// All returns one freshly constructed instance of every built-in plugin,
// in no particular order (parser.NewRegistry sorts by Order).
func All() []parser.Plugin {
	return []parser.Plugin{
		id3.New(), jpeg.New(), png.New(), wave.New(), m3u.New(), pls.New(),
		mp4.New(), asf.New(), flac.New(), ogg.New(), rm.New(), generic.New(),
	}
}

// ByNames resolves a config parser list to concrete plugins. "all" expands
// to every built-in plugin; any other entry must match a plugin's Name
// exactly.
func ByNames(names []string) ([]parser.Plugin, error) {
	for _, n := range names {
		if n == "all" {
			return All(), nil
		}
	}

	byName := make(map[string]func() parser.Plugin, 16)
	byName["id3"] = func() parser.Plugin { return id3.New() }
	byName["jpeg"] = func() parser.Plugin { return jpeg.New() }
	byName["png"] = func() parser.Plugin { return png.New() }
	byName["wave"] = func() parser.Plugin { return wave.New() }
	byName["m3u"] = func() parser.Plugin { return m3u.New() }
	byName["pls"] = func() parser.Plugin { return pls.New() }
	byName["mp4"] = func() parser.Plugin { return mp4.New() }
	byName["asf"] = func() parser.Plugin { return asf.New() }
	byName["flac"] = func() parser.Plugin { return flac.New() }
	byName["ogg"] = func() parser.Plugin { return ogg.New() }
	byName["rm"] = func() parser.Plugin { return rm.New() }
	byName["generic"] = func() parser.Plugin { return generic.New() }

	var out []parser.Plugin
	for _, n := range names {
		ctor, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown parser %q", n)
		}
		out = append(out, ctor())
	}
	return out, nil
}
