package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

var frameRe = regexp.MustCompile(`frame=\s*(\d+)`)

// ParseFrame extracts the frame counter from a progress or stats line.
func ParseFrame(line string) (int64, bool) {
	m := frameRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Snapshot is one complete -progress block.
type Snapshot struct {
	Frame    int64
	FPS      float64
	Speed    float64
	OutTime  string
	Finished bool
}

// ProgressParser accumulates key=value lines until a progress= line closes
// the block.
type ProgressParser struct {
	data map[string]string
}

// NewProgressParser returns an empty parser.
func NewProgressParser() *ProgressParser {
	return &ProgressParser{data: make(map[string]string)}
}

// Feed consumes one line. It returns a snapshot when the line completes a block.
func (p *ProgressParser) Feed(line string) (Snapshot, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Snapshot{}, false
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key != "progress" {
		p.data[key] = value
		return Snapshot{}, false
	}

	s := Snapshot{OutTime: p.data["out_time"], Finished: value == "end"}
	s.Frame, _ = strconv.ParseInt(p.data["frame"], 10, 64)
	s.FPS, _ = strconv.ParseFloat(p.data["fps"], 64)
	s.Speed, _ = strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(p.data["speed"], "x")), 64)
	p.data = make(map[string]string)
	return s, true
}
